package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/minigames/internal/completion"
	"github.com/robalobadob/minigames/internal/daily"
	"github.com/robalobadob/minigames/internal/generate"
	"github.com/robalobadob/minigames/internal/words"
)

type rawEvent struct {
	Seq  uint64          `json:"seq"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type rawEvents struct {
	Seq    uint64     `json:"seq"`
	Events []rawEvent `json:"events"`
}

func eventsOf(t *testing.T, c *client, id string, typ string) []rawEvent {
	t.Helper()
	rec := c.do(http.MethodGet, "/sessions/"+id+"/events", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out []rawEvent
	for _, ev := range decode[rawEvents](t, rec).Events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func guess(t *testing.T, c *client, id, letter string) *httptest.ResponseRecorder {
	t.Helper()
	return c.do(http.MethodPost, "/sessions/"+id+"/actions", map[string]string{"type": "guess", "letter": letter})
}

func TestAuthFlow(t *testing.T) {
	e := newTestEnv(t)
	c := e.client()
	id := c.signup("maija")
	require.NotEmpty(t, id)

	rec := e.client().do(http.MethodPost, "/auth/signup", map[string]string{"username": "maija", "password": "password123"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = e.client().do(http.MethodPost, "/auth/signup", map[string]string{"username": "x", "password": "short"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.client().do(http.MethodPost, "/auth/login", map[string]string{"username": "maija", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = c.do(http.MethodGet, "/auth/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, decode[map[string]any](t, rec)["id"])

	rec = e.client().do(http.MethodGet, "/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// the cookie alone authenticates
	cookieOnly := e.client()
	rec = cookieOnly.do(http.MethodPost, "/auth/login", map[string]string{"username": "maija", "password": "password123"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, cookieOnly.cookies, "mg_token")
	assert.Equal(t, http.StatusOK, cookieOnly.do(http.MethodGet, "/auth/me", nil).Code)

	rec = cookieOnly.do(http.MethodPost, "/auth/logout", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, cookieOnly.cookies, "mg_token")
	assert.Equal(t, http.StatusUnauthorized, cookieOnly.do(http.MethodGet, "/auth/me", nil).Code)

	badToken := e.client()
	badToken.token = "not-a-jwt"
	assert.Equal(t, http.StatusUnauthorized, badToken.do(http.MethodGet, "/auth/me", nil).Code)
}

func TestDemoQuizSession(t *testing.T) {
	e := newTestEnv(t)
	c := e.client()

	rec := c.do(http.MethodPost, "/demo/quiz", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decode[sessionRes](t, rec)
	require.NotNil(t, res.State.Quiz)
	require.Contains(t, c.cookies, anonCookieName)

	assert.Len(t, eventsOf(t, c, res.SessionID, "question"), 1)

	// sessions are private to their owner
	other := e.client()
	assert.Equal(t, http.StatusNotFound, other.do(http.MethodGet, "/sessions/"+res.SessionID, nil).Code)

	rec = c.do(http.MethodPost, "/sessions/"+res.SessionID+"/actions", map[string]any{"type": "answer", "index": 0})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, eventsOf(t, c, res.SessionID, "feedback"), 1)

	// a second answer to the same question is ignored
	rec = c.do(http.MethodPost, "/sessions/"+res.SessionID+"/actions", map[string]any{"type": "answer", "index": 0})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = c.do(http.MethodPost, "/sessions/"+res.SessionID+"/actions", map[string]any{"type": "flip", "index": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do(http.MethodGet, "/sessions/"+res.SessionID+"/events?since=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, http.StatusNotFound, c.do(http.MethodPost, "/demo/chess", nil).Code)

	require.Equal(t, http.StatusOK, c.do(http.MethodDelete, "/sessions/"+res.SessionID, nil).Code)
	assert.Equal(t, http.StatusNotFound, c.do(http.MethodGet, "/sessions/"+res.SessionID, nil).Code)
}

func TestPlayHangmanUpdatesStats(t *testing.T) {
	e := newTestEnv(t)
	c := e.client()
	c.signup("pekka")

	rec := c.do(http.MethodPost, "/play", `{"topic":"taivas","word":"KUU"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode[sessionRes](t, rec).SessionID

	rec = guess(t, c, id, "k")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, http.StatusBadRequest, guess(t, c, id, "7").Code)
	assert.Equal(t, http.StatusConflict, guess(t, c, id, "K").Code)
	require.Equal(t, http.StatusOK, guess(t, c, id, "u").Code)

	// input is closed while the win settles
	assert.Equal(t, http.StatusConflict, guess(t, c, id, "a").Code)
	e.clock.Advance(300 * time.Millisecond)
	assert.Len(t, eventsOf(t, c, id, "end"), 1)

	stats := decode[map[string]any](t, c.do(http.MethodGet, "/stats/me", nil))
	assert.EqualValues(t, 1, stats["gamesPlayed"])
	assert.EqualValues(t, 1, stats["wins"])

	plays := decode[[]playRow](t, c.do(http.MethodGet, "/plays/mine", nil))
	require.Len(t, plays, 1)
	assert.Equal(t, "finished", plays[0].Status)
	require.NotNil(t, plays[0].Score)
	assert.Equal(t, 100, *plays[0].Score)

	rec = c.do(http.MethodPost, "/play", `{"nothing":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnonPlaysClaimedOnSignup(t *testing.T) {
	e := newTestEnv(t)
	c := e.client()

	rec := c.do(http.MethodPost, "/play", `{"word":"KUU"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	c.signup("liisa")
	plays := decode[[]playRow](t, c.do(http.MethodGet, "/plays/mine", nil))
	require.Len(t, plays, 1)
	assert.Equal(t, "playing", plays[0].Status)
}

func TestHangmanAssignment(t *testing.T) {
	e := newTestEnv(t)
	teacher := e.client()
	teacherID := teacher.signupAs("opettaja", roleTeacher)
	student := e.client()
	studentID := student.signup("ville")

	rec := teacher.do(http.MethodPost, "/assignments", map[string]any{
		"studentId": studentID,
		"title":     "Taivaalla",
		"payload":   json.RawMessage(`{"word":"KUU"}`),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	a := decode[completion.Assignment](t, rec)
	assert.Equal(t, "Taivaalla", a.Title)
	assert.Equal(t, teacherID, a.CreatedBy)

	// only the student plays it
	assert.Equal(t, http.StatusForbidden, teacher.do(http.MethodPost, "/assignments/"+a.ID+"/play", nil).Code)
	rec = student.do(http.MethodPost, "/assignments/"+a.ID+"/play", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode[sessionRes](t, rec).SessionID

	require.Equal(t, http.StatusOK, guess(t, student, id, "K").Code)
	require.Equal(t, http.StatusOK, guess(t, student, id, "U").Code)
	e.clock.Advance(300 * time.Millisecond)

	receipts := eventsOf(t, student, id, "receipt")
	require.Len(t, receipts, 1)
	var rc completion.Receipt
	require.NoError(t, json.Unmarshal(receipts[0].Data, &rc))
	assert.Equal(t, completion.Receipt{Status: completion.ReceiptSuccess, Score: 100, Completed: true}, rc)

	for _, c := range []*client{student, teacher} {
		rec = c.do(http.MethodGet, "/assignments/"+a.ID+"/submissions", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		subs := decode[[]completion.Submission](t, rec)
		require.Len(t, subs, 1)
		assert.Equal(t, 100, subs[0].Score)
		assert.Equal(t, studentID, subs[0].StudentID)
	}

	rec = student.do(http.MethodPost, "/assignments/"+a.ID+"/complete", map[string]int{"score": 10})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, completion.ReceiptAlreadyCompleted, decode[completion.Receipt](t, rec).Status)

	list := decode[[]completion.Assignment](t, student.do(http.MethodGet, "/assignments", nil))
	require.Len(t, list, 1)
	assert.Equal(t, completion.StatusGraded, list[0].Status)

	created := decode[[]completion.Assignment](t, teacher.do(http.MethodGet, "/assignments/created", nil))
	require.Len(t, created, 1)
	assert.Equal(t, a.ID, created[0].ID)
	assert.Equal(t, completion.StatusGraded, created[0].Status)
	assert.Equal(t, http.StatusForbidden, student.do(http.MethodGet, "/assignments/created", nil).Code)
}

func TestQuizAssignmentComplete(t *testing.T) {
	e := newTestEnv(t)
	teacher := e.client()
	teacher.signupAs("opettaja", roleTeacher)
	student := e.client()
	studentID := student.signup("oppilas")
	stranger := e.client()
	stranger.signupAs("vieras", roleTeacher)

	rec := teacher.do(http.MethodPost, "/assignments", map[string]any{
		"studentId": studentID,
		"payload":   json.RawMessage(`{"levels":[{"question":"1+1","choices":["1","2"],"correct":1}]}`),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	a := decode[completion.Assignment](t, rec)
	assert.Equal(t, studentID, a.StudentID)

	// the creating teacher can look but not submit; other teachers see nothing
	assert.Equal(t, http.StatusOK, teacher.do(http.MethodGet, "/assignments/"+a.ID, nil).Code)
	assert.Equal(t, http.StatusForbidden, teacher.do(http.MethodPost, "/assignments/"+a.ID+"/complete", map[string]int{"score": 90}).Code)
	assert.Equal(t, http.StatusForbidden, stranger.do(http.MethodGet, "/assignments/"+a.ID, nil).Code)
	assert.Equal(t, http.StatusForbidden, stranger.do(http.MethodGet, "/assignments/"+a.ID+"/submissions", nil).Code)
	assert.Empty(t, decode[[]completion.Assignment](t, stranger.do(http.MethodGet, "/assignments/created", nil)))

	complete := func(score int) completion.Receipt {
		rec := student.do(http.MethodPost, "/assignments/"+a.ID+"/complete", map[string]int{"score": score})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		return decode[completion.Receipt](t, rec)
	}
	rc := complete(60)
	assert.Equal(t, completion.ReceiptSuccess, rc.Status)
	assert.False(t, rc.Completed)

	assert.Equal(t, completion.ReceiptSuccess, complete(90).Status)
	assert.Equal(t, completion.ReceiptAlreadyCompleted, complete(100).Status)

	subs := decode[[]completion.Submission](t, teacher.do(http.MethodGet, "/assignments/"+a.ID+"/submissions", nil))
	require.Len(t, subs, 2)
	assert.Equal(t, []int{60, 90}, []int{subs[0].Score, subs[1].Score})

	assert.Equal(t, http.StatusBadRequest, student.do(http.MethodPost, "/assignments/"+a.ID+"/complete", map[string]int{"score": 101}).Code)
	assert.Equal(t, http.StatusBadRequest, student.do(http.MethodPost, "/assignments/"+a.ID+"/complete", `{}`).Code)
	assert.Equal(t, http.StatusNotFound, student.do(http.MethodGet, "/assignments/missing", nil).Code)
}

func TestAssignmentValidation(t *testing.T) {
	e := newTestEnv(t)
	c := e.client()
	c.signupAs("teemu", roleTeacher)

	rec := c.do(http.MethodPost, "/assignments", map[string]any{"payload": json.RawMessage(`{"levels":[]}`)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do(http.MethodPost, "/assignments", map[string]any{
		"studentId": "nobody",
		"payload":   json.RawMessage(`{"word":"KUU"}`),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, http.StatusUnauthorized, e.client().do(http.MethodGet, "/assignments", nil).Code)
}

func TestOnlyTeachersAssign(t *testing.T) {
	e := newTestEnv(t)
	victim := e.client()
	victimID := victim.signup("kalle")
	pusher := e.client()
	pusher.signup("pertti")

	rec := pusher.do(http.MethodPost, "/assignments", map[string]any{
		"studentId": victimID,
		"payload":   json.RawMessage(`{"word":"KUU"}`),
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, decode[[]completion.Assignment](t, victim.do(http.MethodGet, "/assignments", nil)))

	rec = e.client().do(http.MethodPost, "/auth/signup", map[string]string{"username": "rehtori", "password": "password123", "role": "admin"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	me := decode[map[string]any](t, victim.do(http.MethodGet, "/auth/me", nil))
	assert.Equal(t, roleStudent, me["role"])
}

func TestDailyRound(t *testing.T) {
	e := newTestEnv(t)
	c := e.client()

	rec := c.do(http.MethodPost, "/daily/new", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decode[newRes](t, rec)
	require.NotEmpty(t, first.SessionID)

	// the live round is reused
	rec = c.do(http.MethodPost, "/daily/new", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, first.SessionID, decode[newRes](t, rec).SessionID)

	word, _ := daily.Word(time.Now(), "test-salt", words.List())
	seen := map[rune]bool{}
	for _, r := range words.Normalize(word) {
		if !words.IsLetter(r) || seen[r] {
			continue
		}
		seen[r] = true
		require.Equal(t, http.StatusOK, guess(t, c, first.SessionID, string(r)).Code)
	}
	e.clock.Advance(300 * time.Millisecond)

	rec = c.do(http.MethodPost, "/daily/new", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[newRes](t, rec).Played)

	lb := decode[lbRes](t, c.do(http.MethodGet, "/daily/leaderboard", nil))
	require.Len(t, lb.Top, 1)
	assert.True(t, lb.Top[0].Solved)
	assert.Equal(t, 0, lb.Top[0].Misses)

	lb = decode[lbRes](t, c.do(http.MethodGet, "/daily/leaderboard?date=2000-01-01", nil))
	assert.Empty(t, lb.Top)
}

func fakeOpenAI(t *testing.T, content string) string {
	t.Helper()
	return slowOpenAI(t, content, 0)
}

// slowOpenAI is fakeOpenAI answering every call after delay.
func slowOpenAI(t *testing.T, content string, delay time.Duration) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(delay)
		var req openai.ChatCompletionRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		answer := content
		if strings.Contains(req.Messages[0].Content, "school subject") {
			answer = `{"title":"Eläimet","subject":"Biologia"}`
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-test",
			"object": "chat.completion",
			"model":  "gpt-4o",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": answer},
				"finish_reason": "stop",
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv.URL + "/v1"
}

func TestGenerate(t *testing.T) {
	disabled := newTestEnv(t)
	c := disabled.client()
	c.signupAs("anna", roleTeacher)
	rec := c.do(http.MethodPost, "/generate", map[string]string{"kind": "hangman", "topic": "eläimet"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	gen, err := generate.New(generate.Config{
		APIKey:  "test-key",
		BaseURL: fakeOpenAI(t, `{"topic":"eläimet","words":["KISSA","KOIRA","HEVONEN"]}`),
	})
	require.NoError(t, err)
	e := newTestEnv(t, WithGenerator(gen))
	c = e.client()
	c.signupAs("anna", roleTeacher)

	rec = c.do(http.MethodPost, "/generate", map[string]any{"kind": "hangman", "topic": "eläimet", "assign": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[generateRes](t, rec)
	assert.Equal(t, "Eläimet", res.Meta.Title)
	require.NotNil(t, res.Assignment)
	assert.Equal(t, "Eläimet", res.Assignment.Title)

	rec = c.do(http.MethodPost, "/generate", map[string]any{"kind": "hangman", "topic": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, http.StatusUnauthorized, e.client().do(http.MethodPost, "/generate", nil).Code)

	student := e.client()
	student.signup("oppilas")
	rec = student.do(http.MethodPost, "/generate", map[string]any{"kind": "hangman", "topic": "eläimet"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGenerateOutlivesRequestTimeout(t *testing.T) {
	gen, err := generate.New(generate.Config{
		APIKey:  "test-key",
		BaseURL: slowOpenAI(t, `{"topic":"eläimet","words":["KISSA"]}`, 80*time.Millisecond),
	})
	require.NoError(t, err)
	cfg := testConfig()
	cfg.HTTP.RequestTimeout = 50 * time.Millisecond
	e := newTestEnvConfig(t, cfg, WithGenerator(gen))
	u, err := e.srv.createUser(context.Background(), "anna", "password123", roleTeacher)
	require.NoError(t, err)
	c := e.client()
	c.token, _, err = e.srv.signJWT(u.ID, u.Username)
	require.NoError(t, err)

	// two model calls of 80ms each, well past the 50ms request timeout
	rec := c.do(http.MethodPost, "/generate", map[string]any{"kind": "hangman", "topic": "eläimet"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Eläimet", decode[generateRes](t, rec).Meta.Title)
}

func TestDailyRoundsArePruned(t *testing.T) {
	e := newTestEnv(t)
	c := e.client()
	rec := c.do(http.MethodPost, "/daily/new", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	d := e.srv.daily
	assert.Zero(t, d.prune(context.Background()), "today's live round stays")
	require.Len(t, d.sessions, 1)

	today := time.Now()
	d.now = func() time.Time { return today.Add(24 * time.Hour) }
	assert.Equal(t, 1, d.prune(context.Background()))
	assert.Empty(t, d.sessions)

	// a dropped session is forgotten on the same day too
	d.now = func() time.Time { return today }
	other := e.client()
	rec = other.do(http.MethodPost, "/daily/new", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[newRes](t, rec).SessionID
	require.Equal(t, http.StatusOK, other.do(http.MethodDelete, "/sessions/"+id, nil).Code)
	assert.Equal(t, 1, d.prune(context.Background()))
	assert.Empty(t, d.sessions)
}

func TestSessionWebsocket(t *testing.T) {
	e := newTestEnv(t)
	c := e.client()
	rec := c.do(http.MethodPost, "/demo/memory", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[sessionRes](t, rec).SessionID

	ts := httptest.NewServer(e.srv.Router())
	defer ts.Close()

	header := http.Header{}
	header.Set("Cookie", anonCookieName+"="+c.cookies[anonCookieName].Value)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/sessions/" + id + "/ws"

	// strangers cannot subscribe
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "flip", "index": 0}))

	var types []string
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var msg struct {
			Type  string `json:"type"`
			State *struct {
				Seq uint64 `json:"seq"`
			} `json:"state"`
		}
		require.NoError(t, conn.ReadJSON(&msg))
		types = append(types, msg.Type)
		if msg.Type == "reply" {
			require.NotNil(t, msg.State)
			break
		}
	}
	assert.Contains(t, types, "deck")

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "guess", "letter": "a"}))
	for {
		var msg wsMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == "error" {
			assert.NotEmpty(t, msg.Error)
			break
		}
	}
}
