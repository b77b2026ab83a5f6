package proto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeSplitsConversationTopicByReaderField(t *testing.T) {
	topic := ConversationTopic(10)

	ev, err := Normalize(topic, []byte(`{"id":501,"conversationId":10,"content":"hi","sender":{"id":2,"username":"bob"}}`))
	require.NoError(t, err)
	require.Equal(t, EventMessage, ev.Kind)
	require.NotNil(t, ev.Message)
	require.EqualValues(t, 501, ev.Message.ID)
	require.EqualValues(t, 2, ev.Message.SenderRef().ID)

	// Same topic, different shape: readerId marks a read receipt.
	ev, err = Normalize(topic, []byte(`{"conversationId":10,"readerId":2,"readerName":"Bob"}`))
	require.NoError(t, err)
	require.Equal(t, EventReadReceipt, ev.Kind)
	require.NotNil(t, ev.Receipt)
	require.EqualValues(t, 2, ev.Receipt.ReaderID)
}

func TestNormalizePersonalQueueCarriesMessages(t *testing.T) {
	ev, err := Normalize(PersonalMessagesQueue, []byte(`{"id":7,"conversationId":3,"content":"x","senderId":9}`))
	require.NoError(t, err)
	require.Equal(t, EventMessage, ev.Kind)
	require.EqualValues(t, 9, ev.Message.SenderRef().ID)
}

func TestNormalizeTyping(t *testing.T) {
	ev, err := Normalize(TypingTopic(10), []byte(`{"conversationId":10,"userId":2,"username":"bob","typing":true}`))
	require.NoError(t, err)
	require.Equal(t, EventTyping, ev.Kind)
	require.True(t, ev.Typing.Typing)

	_, err = Normalize(TypingTopic(10), []byte(`{"conversationId":10,"typing":true}`))
	require.Error(t, err, "typing without a user is unusable")
}

func TestNormalizePresence(t *testing.T) {
	ev, err := Normalize(PresenceTopic("bob"), []byte(`{"username":"bob","status":"ONLINE"}`))
	require.NoError(t, err)
	require.Equal(t, EventPresence, ev.Kind)
	require.True(t, ev.Status.Online())

	ev, err = Normalize(PresenceTopic("bob"), []byte(`{"username":"bob","status":"OFFLINE"}`))
	require.NoError(t, err)
	require.False(t, ev.Status.Online())
}

func TestNormalizeRejectsGarbage(t *testing.T) {
	_, err := Normalize(ConversationTopic(10), []byte(`{not json`))
	require.Error(t, err)

	_, err = Normalize(ConversationTopic(10), []byte(`{}`))
	require.Error(t, err, "neither id nor content")

	_, err = Normalize("/topic/something/else", []byte(`{"id":1}`))
	require.Error(t, err, "unclassified topic")
}

func TestClassifyTopic(t *testing.T) {
	require.Equal(t, ClassConversation, ClassifyTopic(ConversationTopic(42)))
	require.Equal(t, ClassTyping, ClassifyTopic(TypingTopic(42)))
	require.Equal(t, ClassRead, ClassifyTopic(ReadTopic(42)))
	require.Equal(t, ClassPersonalMessages, ClassifyTopic(PersonalMessagesQueue))
	require.Equal(t, ClassPersonalReceipts, ClassifyTopic(PersonalReceiptsQueue))
	require.Equal(t, ClassPresence, ClassifyTopic(PresenceTopic("bob")))
	require.Equal(t, ClassUnknown, ClassifyTopic("/queue/other"))
}
