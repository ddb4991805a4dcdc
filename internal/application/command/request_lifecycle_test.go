package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phlock-app/phlock-core/internal/domain/graph"
	"github.com/phlock-app/phlock-core/internal/domain/shared"
	"github.com/phlock-app/phlock-core/pkg/timeutil"
)

func seedRequest(t *testing.T, store *memStore, requesterID, targetID string) *graph.FollowRequest {
	t.Helper()
	req, err := graph.NewFollowRequest(requesterID, targetID, testNow.Add(-time.Hour))
	require.NoError(t, err)
	require.NoError(t, (&fakeRequests{s: store}).Create(context.Background(), req))
	return req
}

func newLifecycleHandler(store *memStore, lists *fakeListCache, pub *recordingPublisher) *RequestLifecycleHandler {
	return NewRequestLifecycleHandler(
		&fakeRequests{s: store}, &fakeEdges{s: store}, lists,
		shared.NopTxRunner{}, pub, timeutil.NewFixedClock(testNow),
	)
}

func TestRespondToRequest_AcceptCreatesEdge(t *testing.T) {
	store := newMemStore()
	req := seedRequest(t, store, "alice", "bob")
	lists := newFakeListCache()
	pub := &recordingPublisher{}
	h := newLifecycleHandler(store, lists, pub)

	res, err := h.Respond(context.Background(), RespondToRequestCommand{
		RequestID: req.ID, ResponderID: "bob", Accept: true,
	})
	require.NoError(t, err)

	assert.Equal(t, graph.RequestAccepted, res.Status)
	assert.NotEmpty(t, res.EdgeID)
	assert.NotNil(t, store.findEdge("alice", "bob"))
	assert.Contains(t, lists.invalidatedFollowing, "alice")
	assert.Contains(t, lists.invalidatedFollowers, "bob")
	assert.Equal(t, []shared.EventType{shared.EventFollowRequestReplied, shared.EventFollowCreated}, pub.typesSeen())
}

func TestRespondToRequest_RejectLeavesNoEdge(t *testing.T) {
	store := newMemStore()
	req := seedRequest(t, store, "alice", "bob")
	h := newLifecycleHandler(store, newFakeListCache(), &recordingPublisher{})

	res, err := h.Respond(context.Background(), RespondToRequestCommand{
		RequestID: req.ID, ResponderID: "bob", Accept: false,
	})
	require.NoError(t, err)

	assert.Equal(t, graph.RequestRejected, res.Status)
	assert.Empty(t, res.EdgeID)
	assert.Nil(t, store.findEdge("alice", "bob"))
}

func TestRespondToRequest_OnlyTargetMayRespond(t *testing.T) {
	store := newMemStore()
	req := seedRequest(t, store, "alice", "bob")
	h := newLifecycleHandler(store, newFakeListCache(), &recordingPublisher{})

	_, err := h.Respond(context.Background(), RespondToRequestCommand{
		RequestID: req.ID, ResponderID: "mallory", Accept: true,
	})

	assert.True(t, shared.IsPrecondition(err))
}

func TestRespondToRequest_ResolvedRequestStaysResolved(t *testing.T) {
	store := newMemStore()
	req := seedRequest(t, store, "alice", "bob")
	h := newLifecycleHandler(store, newFakeListCache(), &recordingPublisher{})

	_, err := h.Respond(context.Background(), RespondToRequestCommand{
		RequestID: req.ID, ResponderID: "bob", Accept: false,
	})
	require.NoError(t, err)

	// The second responder loses the pending CAS.
	_, err = h.Respond(context.Background(), RespondToRequestCommand{
		RequestID: req.ID, ResponderID: "bob", Accept: true,
	})
	assert.ErrorIs(t, err, shared.ErrRequestNotPending)
	assert.Nil(t, store.findEdge("alice", "bob"))
}

func TestCancelRequest_RequesterWithdraws(t *testing.T) {
	store := newMemStore()
	req := seedRequest(t, store, "alice", "bob")
	h := newLifecycleHandler(store, newFakeListCache(), &recordingPublisher{})

	res, err := h.Cancel(context.Background(), CancelRequestCommand{RequestID: req.ID, RequesterID: "alice"})
	require.NoError(t, err)

	assert.Equal(t, graph.RequestCancelled, res.Status)

	// Cancelled requests cannot be accepted afterwards.
	_, err = h.Respond(context.Background(), RespondToRequestCommand{
		RequestID: req.ID, ResponderID: "bob", Accept: true,
	})
	assert.ErrorIs(t, err, shared.ErrRequestNotPending)
}

func TestCancelRequest_OnlyRequesterMayCancel(t *testing.T) {
	store := newMemStore()
	req := seedRequest(t, store, "alice", "bob")
	h := newLifecycleHandler(store, newFakeListCache(), &recordingPublisher{})

	_, err := h.Cancel(context.Background(), CancelRequestCommand{RequestID: req.ID, RequesterID: "bob"})

	assert.True(t, shared.IsPrecondition(err))
}

func TestRespondToRequest_UnknownRequest(t *testing.T) {
	h := newLifecycleHandler(newMemStore(), newFakeListCache(), &recordingPublisher{})

	_, err := h.Respond(context.Background(), RespondToRequestCommand{
		RequestID: "nope", ResponderID: "bob", Accept: true,
	})

	assert.ErrorIs(t, err, shared.ErrRequestNotFound)
}
