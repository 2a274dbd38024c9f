package pipeline

// Action is the terminal outcome chosen for one inbound message.
type Action string

const (
	ActionSkip                Action = "skip"
	ActionSendOutOfOffice     Action = "send-out-of-office"
	ActionSendStopAck         Action = "send-stop-ack"
	ActionSendHumanHandoffAck Action = "send-human-handoff-ack"
	ActionGenerateAIReply     Action = "generate-ai-reply"
)

// Skip reasons, stable strings for logs and dashboards.
const (
	ReasonNotActionable        = "not-actionable"
	ReasonAutoReplyDisabled    = "auto-reply-disabled"
	ReasonOutsideBusinessHours = "outside-business-hours"
	ReasonStopListed           = "stop-listed"
	ReasonTakeoverActive       = "takeover-active"
	ReasonGroupDisabled        = "group-disabled"
	ReasonDailyLimitReached    = "daily-limit-reached"
	ReasonInternalError        = "internal-error"
)

// Decision is the result of evaluating the ordered checks for one inbound
// message. Reason is set for skips and carries the failed check.
type Decision struct {
	Action Action
	Reason string
}

func skip(reason string) Decision {
	return Decision{Action: ActionSkip, Reason: reason}
}
