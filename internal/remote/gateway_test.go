package remote

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/mailtmpl/cli/internal/model"
	"github.com/mailtmpl/cli/internal/remote/remotetest"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const basePath = "/api/email-templates"

// stubRequester answers each request from a queue of canned replies and
// records what it was asked.
type stubRequester struct {
	replies []stubReply
	calls   []string
}

type stubReply struct {
	status int
	body   string
	err    error
}

func (s *stubRequester) URL(path string) string { return "https://tenant.example" + path }

func (s *stubRequester) Get(ctx context.Context, path string) (*Response, error) {
	return s.reply(http.MethodGet, path)
}

func (s *stubRequester) Put(ctx context.Context, path string, body any) (*Response, error) {
	return s.reply(http.MethodPut, path)
}

func (s *stubRequester) Patch(ctx context.Context, path string, body any) (*Response, error) {
	return s.reply(http.MethodPatch, path)
}

func (s *stubRequester) reply(method, path string) (*Response, error) {
	s.calls = append(s.calls, method+" "+path)
	if len(s.replies) == 0 {
		return nil, errors.New("unexpected request " + method + " " + path)
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	if r.err != nil {
		return nil, r.err
	}
	if r.status >= 400 {
		return nil, &HTTPError{Method: method, URL: s.URL(path), Status: r.status, Body: r.body}
	}
	return &Response{Status: r.status, Body: []byte(r.body)}, nil
}

func signIn(lang string) model.Template {
	return model.Template{
		TemplateType: "SignIn",
		LanguageTag:  lang,
		Details:      &model.Details{Subject: "Sign in", Content: "<p>{{code}}</p>", ContentType: model.ContentTypeHTML},
	}
}

func TestUpdateOne_FallsThroughToPatch(t *testing.T) {
	stub := &stubRequester{replies: []stubReply{
		{status: http.StatusNotFound, body: `{"message":"not found"}`},
		{status: http.StatusNotFound, body: `{"message":"not found"}`},
		{status: http.StatusOK, body: `{"id":"1","templateType":"SignIn","languageTag":"en"}`},
	}}
	g := NewGateway(stub, basePath, zerolog.Nop())

	result, err := g.UpdateOne(context.Background(), "1", signIn("en"))
	require.NoError(t, err)
	require.Equal(t, http.MethodPatch, result.Method)
	require.Equal(t, "item-patch", result.Strategy)
	require.Equal(t, "1", result.Template.ID)
	require.NotNil(t, result.Template.Details, "details missing from response are filled from the request")
	require.Equal(t, []string{
		"PUT " + basePath,
		"PUT " + basePath + "/1",
		"PATCH " + basePath + "/1",
	}, stub.calls)
}

func TestUpdateOne_StopsOnServerError(t *testing.T) {
	stub := &stubRequester{replies: []stubReply{
		{status: http.StatusInternalServerError, body: `{"message":"boom"}`},
	}}
	g := NewGateway(stub, basePath, zerolog.Nop())

	_, err := g.UpdateOne(context.Background(), "1", signIn("en"))
	require.Error(t, err)
	require.Len(t, stub.calls, 1, "no further strategy may be attempted after a 500")

	var writeErr *WriteError
	require.ErrorAs(t, err, &writeErr)
	require.False(t, writeErr.Exhausted)
	require.Len(t, writeErr.Attempts, 1)
	require.Equal(t, http.StatusInternalServerError, writeErr.Attempts[0].Status)
	require.Contains(t, err.Error(), "PUT https://tenant.example"+basePath)
	require.Contains(t, err.Error(), "HTTP 500")
	require.Contains(t, err.Error(), "boom")
}

func TestUpdateOne_Exhausted(t *testing.T) {
	stub := &stubRequester{replies: []stubReply{
		{status: http.StatusNotFound, body: "nope-1"},
		{status: http.StatusMethodNotAllowed, body: "nope-2"},
		{status: http.StatusMethodNotAllowed, body: "nope-3"},
	}}
	g := NewGateway(stub, basePath, zerolog.Nop())

	_, err := g.UpdateOne(context.Background(), "42", signIn("en"))
	var writeErr *WriteError
	require.ErrorAs(t, err, &writeErr)
	require.True(t, writeErr.Exhausted)
	require.Len(t, writeErr.Attempts, 3)

	msg := err.Error()
	require.Contains(t, msg, "all 3 write strategies failed")
	for _, want := range []string{
		"PUT https://tenant.example" + basePath + " [batch-with-id] -> HTTP 404: nope-1",
		"PUT https://tenant.example" + basePath + "/42 [item-put] -> HTTP 405: nope-2",
		"PATCH https://tenant.example" + basePath + "/42 [item-patch] -> HTTP 405: nope-3",
	} {
		require.Contains(t, msg, want)
	}
}

func TestUpdateOne_UnrecognizedSuccessIsFatal(t *testing.T) {
	stub := &stubRequester{replies: []stubReply{
		{status: http.StatusOK, body: `{"ok":true}`},
	}}
	g := NewGateway(stub, basePath, zerolog.Nop())

	_, err := g.UpdateOne(context.Background(), "1", signIn("en"))
	require.ErrorIs(t, err, ErrUnrecognizedResponse)
	require.Len(t, stub.calls, 1)
}

func TestUpdateOne_ErrorShapedSuccessIsFatal(t *testing.T) {
	stub := &stubRequester{replies: []stubReply{
		{status: http.StatusOK, body: `{"id":"1","error":"quota exceeded"}`},
	}}
	g := NewGateway(stub, basePath, zerolog.Nop())

	_, err := g.UpdateOne(context.Background(), "1", signIn("en"))
	require.ErrorIs(t, err, ErrErrorResponse)
}

func TestUpdateOne_TransportErrorIsFatal(t *testing.T) {
	stub := &stubRequester{replies: []stubReply{
		{err: &TransportError{Method: http.MethodPut, URL: "x", Err: errors.New("connection reset")}},
	}}
	g := NewGateway(stub, basePath, zerolog.Nop())

	_, err := g.UpdateOne(context.Background(), "1", signIn("en"))
	require.Error(t, err)
	require.Len(t, stub.calls, 1)
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
}

func TestListAll(t *testing.T) {
	t.Run("authoritative", func(t *testing.T) {
		stub := &stubRequester{replies: []stubReply{
			{status: http.StatusOK, body: `[{"id":"1","templateType":"SignIn","languageTag":"en","details":{"subject":"s","content":"c"}}]`},
		}}
		templates, ok, err := NewGateway(stub, basePath, zerolog.Nop()).ListAll(context.Background())
		require.NoError(t, err)
		require.True(t, ok)
		require.Len(t, templates, 1)
		require.Equal(t, "SignIn::en", templates[0].Key())
	})

	for _, status := range []int{http.StatusNotFound, http.StatusMethodNotAllowed} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			stub := &stubRequester{replies: []stubReply{{status: status}}}
			templates, ok, err := NewGateway(stub, basePath, zerolog.Nop()).ListAll(context.Background())
			require.NoError(t, err)
			require.False(t, ok)
			require.Nil(t, templates)
		})
	}

	t.Run("server error", func(t *testing.T) {
		stub := &stubRequester{replies: []stubReply{{status: http.StatusUnauthorized, body: "bad token"}}}
		_, _, err := NewGateway(stub, basePath, zerolog.Nop()).ListAll(context.Background())
		require.Error(t, err)
		require.Equal(t, http.StatusUnauthorized, StatusOf(err))
	})

	t.Run("not an array", func(t *testing.T) {
		stub := &stubRequester{replies: []stubReply{{status: http.StatusOK, body: `{"templates":[]}`}}}
		_, _, err := NewGateway(stub, basePath, zerolog.Nop()).ListAll(context.Background())
		require.ErrorIs(t, err, ErrUnrecognizedResponse)
	})
}

func TestBulkUpsert(t *testing.T) {
	t.Run("array response", func(t *testing.T) {
		stub := &stubRequester{replies: []stubReply{
			{status: http.StatusOK, body: `[{"id":"7","templateType":"SignIn","languageTag":"en","details":{"subject":"Sign in","content":"x"}}]`},
		}}
		written, err := NewGateway(stub, basePath, zerolog.Nop()).BulkUpsert(context.Background(), []model.Template{signIn("en")})
		require.NoError(t, err)
		require.Len(t, written, 1)
		require.Equal(t, "7", written[0].ID)
	})

	t.Run("empty body confirms payload", func(t *testing.T) {
		stub := &stubRequester{replies: []stubReply{{status: http.StatusNoContent}}}
		in := []model.Template{signIn("en"), signIn("de")}
		written, err := NewGateway(stub, basePath, zerolog.Nop()).BulkUpsert(context.Background(), in)
		require.NoError(t, err)
		require.Len(t, written, 2)
		require.Equal(t, "SignIn::de", written[1].Key())
		require.Equal(t, "", written[0].ID)
	})

	t.Run("unrecognized body fails batch", func(t *testing.T) {
		stub := &stubRequester{replies: []stubReply{{status: http.StatusOK, body: `"done"`}}}
		_, err := NewGateway(stub, basePath, zerolog.Nop()).BulkUpsert(context.Background(), []model.Template{signIn("en")})
		require.ErrorIs(t, err, ErrUnrecognizedResponse)
	})

	t.Run("error status fails batch", func(t *testing.T) {
		stub := &stubRequester{replies: []stubReply{{status: http.StatusBadRequest, body: `{"code":"guard.invalid_input"}`}}}
		_, err := NewGateway(stub, basePath, zerolog.Nop()).BulkUpsert(context.Background(), []model.Template{signIn("en")})
		require.Error(t, err)
		require.Equal(t, http.StatusBadRequest, StatusOf(err))
		require.Contains(t, err.Error(), "guard.invalid_input")
	})
}

func TestGateway_AgainstFakeServer(t *testing.T) {
	server := remotetest.NewServer(remotetest.Options{NoBatchWithID: true, NoItemPut: true})
	defer server.Close()
	server.Seed(signIn("en"))

	client := NewClient(server.URL, server.Client(), zerolog.Nop())
	g := NewGateway(client, basePath, zerolog.Nop())

	listed, ok, err := g.ListAll(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, listed, 1)

	updated := signIn("en")
	updated.Details.Subject = "Your sign-in code"
	result, err := g.UpdateOne(context.Background(), listed[0].ID, updated)
	require.NoError(t, err)
	require.Equal(t, http.MethodPatch, result.Method)
	require.Equal(t, "Your sign-in code", server.Templates()[0].Details.Subject)

	created, err := g.CreateOne(context.Background(), signIn("fr"))
	require.NoError(t, err)
	require.NotEmpty(t, created.Template.ID)
	require.Len(t, server.Templates(), 2)
}

func TestClient_TransportHint(t *testing.T) {
	server := remotetest.NewServer(remotetest.Options{})
	url := server.URL
	server.Close()

	client := NewClient(url, nil, zerolog.Nop())
	_, err := client.Get(context.Background(), basePath)

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	require.True(t, strings.Contains(err.Error(), "reachable"), "expected connectivity hint in %q", err.Error())
}
