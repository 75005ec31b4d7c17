package assistant

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var calls []string
	mux := http.NewServeMux()

	write := func(w http.ResponseWriter, status int, body string) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}

	mux.HandleFunc("POST /threads", func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, "create_thread")
		write(w, 200, `{"id":"thread_abc","object":"thread","created_at":1700000000,"metadata":{}}`)
	})
	mux.HandleFunc("DELETE /threads/{id}", func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, "delete_thread:"+r.PathValue("id"))
		if r.PathValue("id") == "thread_missing" {
			write(w, 404, `{"error":{"message":"No thread found with id 'thread_missing'.","type":"invalid_request_error"}}`)
			return
		}
		write(w, 200, `{"id":"thread_abc","object":"thread.deleted","deleted":true}`)
	})
	mux.HandleFunc("POST /threads/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		calls = append(calls, "append:"+body["role"].(string)+":"+body["content"].(string))
		write(w, 200, `{"id":"msg_user","object":"thread.message","created_at":1700000001,"thread_id":"thread_abc","role":"user",
			"content":[{"type":"text","text":{"value":"hello","annotations":[]}}]}`)
	})
	mux.HandleFunc("POST /threads/{id}/runs", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		calls = append(calls, "create_run:"+body["assistant_id"].(string))
		write(w, 200, `{"id":"run_1","object":"thread.run","thread_id":"thread_abc","assistant_id":"asst_1","status":"queued"}`)
	})
	mux.HandleFunc("GET /threads/{id}/runs/{run}", func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, "get_run:"+r.PathValue("run"))
		write(w, 200, `{"id":"run_1","object":"thread.run","thread_id":"thread_abc","assistant_id":"asst_1","status":"completed"}`)
	})
	mux.HandleFunc("GET /threads/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, "list:"+r.URL.Query().Get("order")+":"+r.URL.Query().Get("limit"))
		write(w, 200, `{"object":"list","has_more":false,"data":[
			{"id":"msg_reply","object":"thread.message","created_at":1700000005,"thread_id":"thread_abc","role":"assistant","run_id":"run_1",
			 "content":[{"type":"text","text":{"value":"It is a cat.","annotations":[]}}]},
			{"id":"msg_user","object":"thread.message","created_at":1700000001,"thread_id":"thread_abc","role":"user",
			 "content":[{"type":"text","text":{"value":"hello","annotations":[]}}]}]}`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestOpenAIClient_TurnRoundTrip(t *testing.T) {
	srv, calls := newTestServer(t)
	client := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/"})
	ctx := context.Background()

	th, err := client.CreateThread(ctx)
	require.NoError(t, err)
	assert.Equal(t, "thread_abc", th.ID)
	assert.Equal(t, int64(1700000000), th.CreatedAt.Unix())

	_, err = client.AppendMessage(ctx, th.ID, "user", "hello")
	require.NoError(t, err)

	run, err := client.CreateRun(ctx, th.ID, "asst_1")
	require.NoError(t, err)
	assert.Equal(t, RunStatusQueued, run.Status)

	run, err = client.GetRun(ctx, th.ID, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusCompleted, run.Status)

	msgs, err := client.ListMessages(ctx, th.ID, ListOptions{Order: OrderDesc, Limit: 10})
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	reply, ok := FindRunReply(msgs, run.ID)
	require.True(t, ok)
	assert.Equal(t, "msg_reply", reply.ID)
	assert.Equal(t, "It is a cat.", reply.Text)

	assert.Equal(t, []string{
		"create_thread",
		"append:user:hello",
		"create_run:asst_1",
		"get_run:run_1",
		"list:desc:10",
	}, *calls)
}

func TestOpenAIClient_ErrorCarriesProviderMessage(t *testing.T) {
	srv, calls := newTestServer(t)
	client := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/"})

	err := client.DeleteThread(context.Background(), "thread_missing")

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, "delete thread", upstream.Op)
	assert.Equal(t, http.StatusNotFound, upstream.StatusCode)
	assert.Contains(t, upstream.Message, "No thread found")
	// retries are disabled, so exactly one request went out
	assert.Equal(t, []string{"delete_thread:thread_missing"}, *calls)
}
