package natsbus

import "fmt"

// Topic patterns for NATS pub/sub communication. Orchestration events fan
// out under events.* so the web layer can forward them with one wildcard
// subscription.

func TopicConversationEvents(conversationID string) string {
	return fmt.Sprintf("events.conversation.%s", conversationID)
}

func TopicConversationFragments(conversationID string) string {
	return fmt.Sprintf("stream.conversation.%s", conversationID)
}

func TopicCrewEvents(crewID string) string {
	return fmt.Sprintf("events.crew.%s", crewID)
}

const (
	TopicEventsAll          = "events.>"
	TopicEventsConversation = "events.conversation.*"
	TopicEventPromptRun     = "events.prompt.executed"
	TopicStreamAll          = "stream.>"
)
