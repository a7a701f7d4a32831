package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/matryer/is"

	"github.com/carevoice/companion/pkg/agent"
	asrfake "github.com/carevoice/companion/pkg/ai/asr/fake"
	replyfake "github.com/carevoice/companion/pkg/ai/reply/fake"
	"github.com/carevoice/companion/pkg/ai/sentiment"
	sentfake "github.com/carevoice/companion/pkg/ai/sentiment/fake"
	ttsfake "github.com/carevoice/companion/pkg/ai/tts/fake"
	"github.com/carevoice/companion/pkg/audio"
	"github.com/carevoice/companion/pkg/feature"
	"github.com/carevoice/companion/pkg/memory"
	"github.com/carevoice/companion/pkg/reminder"
	"github.com/carevoice/companion/pkg/session"
	"github.com/carevoice/companion/pkg/vad"
	"github.com/carevoice/companion/pkg/voice"
)

const testSampleRate = 16000

func testServer(t *testing.T, transcript string) (*httptest.Server, *session.Manager) {
	t.Helper()
	factory := func(id string) (*agent.Agent, *vad.Pipeline, error) {
		ag := agent.New(agent.Config{
			Transcriber: asrfake.NewFakeTranscriber(transcript),
			Classifier:  sentfake.NewFakeClassifier(sentiment.Neutral, 0),
			Generator:   replyfake.NewFakeGenerator("glad you told me"),
			Synthesizer: ttsfake.NewFakeSynthesizer(),
			Memory:      memory.New(),
			Styling:     voice.DefaultConfig(),
			Medication:  feature.NewMedication(),
			WordOfDay:   feature.NewWordOfDay(),
			Words:       feature.NewStaticWords(nil),
		})
		pipe := vad.NewPipeline(vad.DefaultGateConfig(), vad.DefaultAssemblerConfig(), nil)
		return ag, pipe, nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	manager := session.NewManager(factory, nil, nil)
	srv := httptest.NewServer(New(ctx, manager, testSampleRate, nil).Handler())
	t.Cleanup(func() {
		srv.Close()
		cancel()
		manager.CloseAll()
	})
	return srv, manager
}

// speechPCM is loud samples followed by silence past the patience window.
func speechPCM() []int16 {
	loud := make([]int16, testSampleRate*6/10) // 600ms
	for i := range loud {
		loud[i] = 8000
	}
	quiet := make([]int16, testSampleRate*22/10) // 2.2s
	return append(loud, quiet...)
}

func readUntil(t *testing.T, conn *websocket.Conn, msgType string) Outbound {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		conn.SetReadDeadline(deadline)
		var out Outbound
		if err := conn.ReadJSON(&out); err != nil {
			t.Fatalf("reading for %q: %v", msgType, err)
		}
		if out.Type == msgType {
			return out
		}
	}
}

func TestWebSocketExchange(t *testing.T) {
	is := is.New(t)
	srv, _ := testServer(t, "I watered the garden")
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	is.NoErr(err)
	defer conn.Close()

	hello := readUntil(t, conn, "session")
	is.True(hello.SessionID != "")

	// Stream the utterance as binary PCM chunks.
	pcm := speechPCM()
	chunk := testSampleRate / 50
	for off := 0; off < len(pcm); off += chunk {
		end := off + chunk
		if end > len(pcm) {
			end = len(pcm)
		}
		is.NoErr(conn.WriteMessage(websocket.BinaryMessage, audio.EncodePCM16(pcm[off:end])))
	}

	tr := readUntil(t, conn, "transcript")
	is.Equal(tr.Text, "I watered the garden")

	resp := readUntil(t, conn, "response")
	is.Equal(resp.Text, "glad you told me")

	clip := readUntil(t, conn, "audio")
	is.True(clip.Data != "")
	is.Equal(clip.Format, "wav")
}

func TestWebSocketPing(t *testing.T) {
	is := is.New(t)
	srv, _ := testServer(t, "hello")
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	is.NoErr(err)
	defer conn.Close()

	readUntil(t, conn, "session")
	is.NoErr(conn.WriteJSON(Inbound{Type: "ping"}))
	readUntil(t, conn, "pong")
}

func TestBufferedHTTPTransport(t *testing.T) {
	is := is.New(t)
	srv, _ := testServer(t, "what a sunny morning")

	resp, err := http.Post(srv.URL+"/v1/sessions", "application/json", nil)
	is.NoErr(err)
	defer resp.Body.Close()
	is.Equal(resp.StatusCode, http.StatusCreated)

	var created map[string]string
	is.NoErr(json.NewDecoder(resp.Body).Decode(&created))
	id := created["session_id"]
	is.True(id != "")

	body := audio.EncodePCM16(speechPCM())
	utterResp, err := http.Post(srv.URL+"/v1/sessions/"+id+"/utterance", "application/octet-stream", bytes.NewReader(body))
	is.NoErr(err)
	defer utterResp.Body.Close()
	is.Equal(utterResp.StatusCode, http.StatusOK)

	var result UtteranceResult
	is.NoErr(json.NewDecoder(utterResp.Body).Decode(&result))
	is.Equal(result.Transcript, "what a sunny morning")
	is.Equal(result.Response, "glad you told me")
	is.True(result.Audio != "")

	del, err := http.NewRequest(http.MethodDelete, srv.URL+"/v1/sessions/"+id, nil)
	is.NoErr(err)
	delResp, err := http.DefaultClient.Do(del)
	is.NoErr(err)
	delResp.Body.Close()
	is.Equal(delResp.StatusCode, http.StatusNoContent)
}

func createTestSession(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp, err := http.Post(srv.URL+"/v1/sessions", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var created map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatal(err)
	}
	if created["session_id"] == "" {
		t.Fatal("no session id")
	}
	return created["session_id"]
}

func TestBufferedNoSpeechAnswersImmediately(t *testing.T) {
	is := is.New(t)
	srv, _ := testServer(t, "should never transcribe")
	id := createTestSession(t, srv)

	// A second of room tone, well under the voice threshold.
	quiet := make([]int16, testSampleRate)
	for i := range quiet {
		quiet[i] = 100
	}
	start := time.Now()
	resp, err := http.Post(srv.URL+"/v1/sessions/"+id+"/utterance",
		"application/octet-stream", bytes.NewReader(audio.EncodePCM16(quiet)))
	is.NoErr(err)
	defer resp.Body.Close()
	is.Equal(resp.StatusCode, http.StatusOK)
	is.True(time.Since(start) < 10*time.Second) // no waiting out the turn deadline

	var result UtteranceResult
	is.NoErr(json.NewDecoder(resp.Body).Decode(&result))
	is.True(result.NoSpeech)
	is.Equal(result.Transcript, "")
	is.Equal(result.Response, "")
}

func TestBufferedExchangeSkipsStaleNudge(t *testing.T) {
	is := is.New(t)
	srv, manager := testServer(t, "yes I took them")
	id := createTestSession(t, srv)

	// A reminder fires while no POST is in flight; its outputs sit
	// unread in the session buffer.
	sess := manager.Get(id)
	is.True(sess != nil)
	is.True(sess.Notify(reminder.Event{Kind: reminder.KindMedication, Name: "heart pills", At: time.Now()}))
	time.Sleep(300 * time.Millisecond)

	resp, err := http.Post(srv.URL+"/v1/sessions/"+id+"/utterance",
		"application/octet-stream", bytes.NewReader(audio.EncodePCM16(speechPCM())))
	is.NoErr(err)
	defer resp.Body.Close()
	is.Equal(resp.StatusCode, http.StatusOK)

	var result UtteranceResult
	is.NoErr(json.NewDecoder(resp.Body).Decode(&result))
	is.Equal(result.Transcript, "yes I took them") // the new turn, not the nudge
	is.True(result.Audio != "")
}

func TestHealthz(t *testing.T) {
	is := is.New(t)
	srv, _ := testServer(t, "hello")

	resp, err := http.Get(srv.URL + "/healthz")
	is.NoErr(err)
	defer resp.Body.Close()
	is.Equal(resp.StatusCode, http.StatusOK)
}

func TestEncodeNudges(t *testing.T) {
	out := encode(agent.Output{Type: agent.OutputNudge, Nudge: agent.NudgeMedication, Text: "time for your pills"})
	if out.Type != "medication_nudge" {
		t.Fatalf("got type %q", out.Type)
	}
	greeting := encode(agent.Output{Type: agent.OutputNudge, Nudge: agent.NudgeGreeting, Text: "hello"})
	if greeting.Type != "response" {
		t.Fatalf("greetings should encode as responses, got %q", greeting.Type)
	}
}
