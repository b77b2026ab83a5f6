package rest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

// fakeBackend mimics the conversation API routes the client talks to.
type fakeBackend struct {
	srv *httptest.Server

	lastAuth string
	muted    map[string]bool
	kicked   []string
	left     map[string]any
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	gin.SetMode(gin.TestMode)
	b := &fakeBackend{muted: make(map[string]bool)}

	r := gin.New()
	r.Use(func(c *gin.Context) {
		b.lastAuth = c.GetHeader("Authorization")
		c.Next()
	})

	r.GET("/api/conversations", func(c *gin.Context) {
		c.JSON(http.StatusOK, []gin.H{
			{"id": 10, "name": "Bob B", "unreadCount": 2, "muted": false},
			{"id": 11, "name": "Team", "isGroup": true},
		})
	})
	r.GET("/api/conversations/:id", func(c *gin.Context) {
		if c.Param("id") == "404" {
			c.JSON(http.StatusNotFound, gin.H{"error": "no such conversation"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": 10, "name": "Bob B"})
	})
	r.GET("/api/conversations/:id/messages", func(c *gin.Context) {
		c.JSON(http.StatusOK, []gin.H{
			{"id": 1, "conversationId": 10, "content": "old", "createdAt": "2025-11-03T12:00:00", "sender": gin.H{"id": 2}},
			{"id": 2, "conversationId": 10, "content": "new", "createdAt": 1762171200000, "senderId": 2},
		})
	})
	r.GET("/api/conversations/:id/messages/search", func(c *gin.Context) {
		c.JSON(http.StatusOK, []gin.H{
			{"id": 1, "conversationId": 10, "content": "match " + c.Query("q") + " limit " + c.Query("limit")},
		})
	})
	r.PATCH("/api/conversations/:id/mute", func(c *gin.Context) {
		var body struct {
			Muted bool `json:"muted"`
		}
		require.NoError(t, c.BindJSON(&body))
		b.muted[c.Param("id")] = body.Muted
		c.Status(http.StatusNoContent)
	})
	r.POST("/api/conversations/groups", func(c *gin.Context) {
		var body struct {
			Name      string  `json:"name"`
			MemberIDs []int64 `json:"memberIds"`
		}
		require.NoError(t, c.BindJSON(&body))
		c.JSON(http.StatusOK, gin.H{
			"id": 50, "name": body.Name, "isGroup": true,
			"participantCount": len(body.MemberIDs) + 1,
		})
	})
	r.POST("/api/conversations/:id/kick/:member", func(c *gin.Context) {
		b.kicked = append(b.kicked, c.Param("id")+"/"+c.Param("member"))
		c.Status(http.StatusNoContent)
	})
	r.POST("/api/conversations/:id/leave", func(c *gin.Context) {
		var body map[string]any
		require.NoError(t, c.BindJSON(&body))
		b.left = body
		c.Status(http.StatusNoContent)
	})

	b.srv = httptest.NewServer(r)
	t.Cleanup(b.srv.Close)
	return b
}

func newTestClient(b *fakeBackend) *Client {
	return New(b.srv.URL+"/api", "abc123", b.srv.Client(), nil)
}

func TestListConversationsSendsBearerToken(t *testing.T) {
	b := newFakeBackend(t)
	c := newTestClient(b)

	list, err := c.ListConversations(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "Bearer abc123", b.lastAuth)
	require.EqualValues(t, 10, list[0].ID)
	require.Equal(t, 2, list[0].UnreadCount)
	require.True(t, list[1].IsGroup)
}

func TestGetMessagesDecodesMixedTimestamps(t *testing.T) {
	b := newFakeBackend(t)
	c := newTestClient(b)

	msgs, err := c.GetMessages(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, msgs[0].CreatedAt.UTC(), msgs[1].CreatedAt.UTC())
	require.EqualValues(t, 2, msgs[0].SenderRef().ID)
	require.EqualValues(t, 2, msgs[1].SenderRef().ID)
}

func TestSearchMessagesAppliesDefaultLimit(t *testing.T) {
	b := newFakeBackend(t)
	c := newTestClient(b)

	msgs, err := c.SearchMessages(context.Background(), 10, "hello", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, "match hello limit 20", msgs[0].Content)
}

func TestUpdateMute(t *testing.T) {
	b := newFakeBackend(t)
	c := newTestClient(b)

	require.NoError(t, c.UpdateMute(context.Background(), 10, true))
	require.True(t, b.muted["10"])
}

func TestCreateGroup(t *testing.T) {
	b := newFakeBackend(t)
	c := newTestClient(b)

	conv, err := c.CreateGroup(context.Background(), "Team", []int64{2, 3})
	require.NoError(t, err)
	require.EqualValues(t, 50, conv.ID)
	require.True(t, conv.IsGroup)
	require.Equal(t, 3, conv.ParticipantCount)
}

func TestKickMemberPath(t *testing.T) {
	b := newFakeBackend(t)
	c := newTestClient(b)

	require.NoError(t, c.KickMember(context.Background(), 50, 3))
	require.Equal(t, []string{"50/3"}, b.kicked)
}

func TestLeaveGroupNamesSuccessorOnlyWhenGiven(t *testing.T) {
	b := newFakeBackend(t)
	c := newTestClient(b)

	require.NoError(t, c.LeaveGroup(context.Background(), 50, 3))
	require.EqualValues(t, 3, b.left["newAdminId"])

	require.NoError(t, c.LeaveGroup(context.Background(), 50, 0))
	require.Empty(t, b.left)
}

func TestErrorStatusSurfacesAsError(t *testing.T) {
	b := newFakeBackend(t)
	c := newTestClient(b)

	_, err := c.GetConversation(context.Background(), 404)
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 404")
}
