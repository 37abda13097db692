package twitter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(handler http.Handler) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	client := NewClient(Config{
		BaseURL:     srv.URL,
		ListID:      "L1",
		BearerToken: "test-token",
		HTTPClient:  srv.Client(),
	})
	return client, srv
}

func TestLookupUserID(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/by/username/alice", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"data":{"id":"42","username":"alice","name":"Alice"}}`)
	}))
	defer srv.Close()

	id, _, err := client.LookupUserID(context.Background(), "@Alice")
	require.NoError(t, err)
	assert.Equal(t, "42", id)
}

func TestLookupUserID_NotFound(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, _, err := client.LookupUserID(context.Background(), "ghost")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "ghost", nf.Handle)
}

func TestLookupUserID_MissingData(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	_, _, err := client.LookupUserID(context.Background(), "ghost")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestLookupUserID_RateLimited(t *testing.T) {
	reset := time.Now().Add(10 * time.Minute).Unix()
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-rate-limit-remaining", "0")
		w.Header().Set("x-rate-limit-reset", fmt.Sprint(reset))
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, rs, err := client.LookupUserID(context.Background(), "alice")
	var rl *RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 0, rl.Remaining)
	assert.Equal(t, time.Unix(reset, 0), rl.ResetAt)
	assert.True(t, rs.Limited)
}

func TestAddMember_AlreadyMember(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/lists/L1/members", r.URL.Path)
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"errors":[{"message":"User is already a member of this List."}]}`)
	}))
	defer srv.Close()

	res, _, err := client.AddMember(context.Background(), "42")
	require.NoError(t, err)
	assert.True(t, res.AlreadyMember)
}

func TestAddMember_OtherForbidden(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"errors":[{"message":"You are not permitted to perform this action."}]}`)
	}))
	defer srv.Close()

	_, _, err := client.AddMember(context.Background(), "42")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
}

func TestAddMember_Idempotent(t *testing.T) {
	calls := 0
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			fmt.Fprint(w, `{"data":{"is_member":true}}`)
			return
		}
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"errors":[{"message":"already a member"}]}`)
	}))
	defer srv.Close()

	first, _, err := client.AddMember(context.Background(), "42")
	require.NoError(t, err)
	assert.False(t, first.AlreadyMember)

	second, _, err := client.AddMember(context.Background(), "42")
	require.NoError(t, err)
	assert.True(t, second.AlreadyMember)
}

func TestRemoveMember_AlreadyAbsent(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/lists/L1/members/42", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	res, _, err := client.RemoveMember(context.Background(), "42")
	require.NoError(t, err)
	assert.True(t, res.AlreadyAbsent)
}

func TestListMembers_Paginated(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "100", r.URL.Query().Get("max_results"))
		switch r.URL.Query().Get("pagination_token") {
		case "":
			fmt.Fprint(w, `{"data":[{"id":"1","username":"a","name":"A"},{"id":"2","username":"b","name":"B"}],"meta":{"next_token":"p2"}}`)
		case "p2":
			fmt.Fprint(w, `{"data":[{"id":"3","username":"c","name":"C"}],"meta":{}}`)
		default:
			t.Errorf("unexpected pagination token %q", r.URL.Query().Get("pagination_token"))
		}
	}))
	defer srv.Close()

	members, _, err := client.ListMembers(context.Background())
	require.NoError(t, err)
	require.Len(t, members, 3)
	assert.Equal(t, "1", members[0].ID)
	assert.Equal(t, "c", members[2].Username)
}

func TestListMembers_RateLimitedMidway(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("pagination_token") == "" {
			fmt.Fprint(w, `{"data":[{"id":"1","username":"a","name":"A"}],"meta":{"next_token":"p2"}}`)
			return
		}
		w.Header().Set("x-rate-limit-remaining", "0")
		w.Header().Set("x-rate-limit-reset", "1900000000")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	members, _, err := client.ListMembers(context.Background())
	var rl *RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.Nil(t, members, "a failed fetch must not return partial data")
}

func TestTransientOn5xx(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, _, err := client.LookupUserID(context.Background(), "alice")
	var tr *TransientError
	require.ErrorAs(t, err, &tr)
	assert.Equal(t, http.StatusServiceUnavailable, tr.Status)
}

func TestTransientOnNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client := NewClient(Config{BaseURL: srv.URL, ListID: "L1"})
	srv.Close()

	_, _, err := client.ListMembers(context.Background())
	var tr *TransientError
	require.ErrorAs(t, err, &tr)
	assert.False(t, errors.Is(err, context.Canceled))
}

func TestNormalizeHandle(t *testing.T) {
	assert.Equal(t, "alice", NormalizeHandle(" @Alice "))
	assert.Equal(t, "bob", NormalizeHandle("BOB"))
	assert.Equal(t, "", NormalizeHandle("@"))
}
