package model

type MessageRole string

const (
	RoleTraveler  MessageRole = "traveler"
	RoleAssistant MessageRole = "assistant"
)

type MessageType string

const (
	MessageTypeIntakeCompleted MessageType = "intake_completed"
	MessageTypeAdHoc           MessageType = "ad_hoc"
	MessageTypeReminder        MessageType = "reminder"
)

type IntakeState string

const (
	IntakeStateAwaiting IntakeState = "awaiting"
	IntakeStateActive   IntakeState = "active"
)
