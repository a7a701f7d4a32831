package server

import (
	"encoding/base64"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/carevoice/companion/pkg/agent"
	"github.com/carevoice/companion/pkg/audio"
	"github.com/carevoice/companion/pkg/audio/wav"
	"github.com/carevoice/companion/pkg/session"
)

// httpTurnTimeout bounds one buffered exchange end to end.
const httpTurnTimeout = 30 * time.Second

// httpState tracks sequence counters for sessions fed by the buffered
// transport, so repeated POSTs stay contiguous for the VAD pipeline.
type httpState struct {
	mu   sync.Mutex
	seqs map[string]uint64
}

func newHTTPState() *httpState {
	return &httpState{seqs: make(map[string]uint64)}
}

func (h *httpState) next(id string, n uint64) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	seq := h.seqs[id]
	h.seqs[id] = seq + n
	return seq
}

func (h *httpState) forget(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.seqs, id)
}

// UtteranceResult is the buffered transport's reply: one complete
// exchange per POST.
type UtteranceResult struct {
	SessionID  string `json:"session_id"`
	Transcript string `json:"transcript"`
	NoSpeech   bool   `json:"no_speech,omitempty"`
	Response   string `json:"response"`
	Sentiment  string `json:"sentiment,omitempty"`
	Audio      string `json:"audio,omitempty"` // base64
	Format     string `json:"format,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Create(s.baseCtx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not start session")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": sess.ID()})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.httpSeqs.forget(id)
	s.manager.Destroy(id)
	w.WriteHeader(http.StatusNoContent)
}

// handleUtterance accepts one complete utterance (WAV or raw 16-bit PCM
// little-endian) and replies with the full exchange once the pipeline
// finishes. It feeds the same VAD and assembly path as streaming audio.
func (s *Server) handleUtterance(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sess := s.manager.Get(id)
	if sess == nil {
		writeError(w, http.StatusNotFound, "no such session")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 10<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read audio")
		return
	}
	var pcm []int16
	sampleRate := s.sampleRate
	if r.Header.Get("Content-Type") == "audio/wav" {
		var perr error
		pcm, sampleRate, perr = wav.Parse(body)
		if perr != nil {
			writeError(w, http.StatusBadRequest, perr.Error())
			return
		}
	} else {
		pcm = audio.DecodePCM16(body)
	}
	if len(pcm) == 0 {
		writeError(w, http.StatusBadRequest, "empty audio payload")
		return
	}

	drainStale(sess)

	produced, err := s.pushUtterance(sess, pcm, sampleRate)
	if err != nil {
		writeError(w, http.StatusConflict, "session closed")
		return
	}
	if !produced {
		// The audio never crossed the voice threshold, so no turn will
		// run; answer as a no-speech exchange instead of making the
		// client wait out the turn deadline.
		writeJSON(w, http.StatusOK, UtteranceResult{SessionID: id, NoSpeech: true})
		return
	}

	result, err := collectExchange(sess, id)
	if err != nil {
		writeError(w, http.StatusGatewayTimeout, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// drainStale discards outputs left over from background turns between
// POSTs, so a buffered client's next exchange never answers with an old
// nudge. Discarded audio is acknowledged so the agent leaves Speaking.
func drainStale(sess *session.Session) {
	drained := false
	for {
		select {
		case out, ok := <-sess.Outputs():
			if !ok {
				return
			}
			drained = true
			if out.Type == agent.OutputAudio {
				sess.PlaybackFinished()
			}
		default:
			if !drained {
				return
			}
			// A turn unparked by the drain may still be finishing.
			time.Sleep(20 * time.Millisecond)
			drained = false
		}
	}
}

// pushUtterance splits the buffered audio into frames with a contiguous
// per-session sequence and finalizes with an explicit flush, reporting
// whether the audio produced an utterance at all.
func (s *Server) pushUtterance(sess *session.Session, pcm []int16, sampleRate int) (bool, error) {
	before := sess.Utterances()
	chunk := sampleRate / 50
	nFrames := (len(pcm) + chunk - 1) / chunk
	seq := s.httpSeqs.next(sess.ID(), uint64(nFrames))
	ts := time.Now()
	frameDur := time.Second / 50

	for off := 0; off < len(pcm); off += chunk {
		end := off + chunk
		if end > len(pcm) {
			end = len(pcm)
		}
		f, err := audio.NewFrame(seq, pcm[off:end], sampleRate, ts)
		if err != nil {
			return false, err
		}
		if err := sess.PushFrame(f); err != nil {
			return false, err
		}
		seq++
		ts = ts.Add(frameDur)
	}
	after, err := sess.Flush()
	if err != nil {
		return false, err
	}
	return after > before, nil
}

// collectExchange drains session outputs until the turn completes:
// audio arrives, the reply is confirmed text-only, or an error surfaces.
func collectExchange(sess *session.Session, id string) (UtteranceResult, error) {
	result := UtteranceResult{SessionID: id}
	deadline := time.After(httpTurnTimeout)
	sawReply := false
	for {
		select {
		case out, ok := <-sess.Outputs():
			if !ok {
				return result, errSessionEnded
			}
			switch out.Type {
			case agent.OutputTranscript:
				result.Transcript = out.Text
				result.NoSpeech = out.NoSpeech
			case agent.OutputResponse:
				result.Response = out.Text
				result.Sentiment = string(out.Sentiment)
				sawReply = true
			case agent.OutputNudge:
				result.Response = out.Text
				sawReply = true
			case agent.OutputAudio:
				result.Audio = base64.StdEncoding.EncodeToString(out.Clip.Data)
				result.Format = out.Clip.Format
				result.SampleRate = out.Clip.SampleRate
				sess.PlaybackFinished()
				return result, nil
			case agent.OutputError:
				if sawReply {
					// Synthesis failed; the text reply stands.
					return result, nil
				}
			case agent.OutputStatus:
				if out.Status == agent.StatusListening && sawReply {
					return result, nil
				}
			}
		case <-deadline:
			return result, errTurnTimeout
		}
	}
}

type serverError string

func (e serverError) Error() string { return string(e) }

const (
	errSessionEnded = serverError("session ended mid-exchange")
	errTurnTimeout  = serverError("timed out waiting for pipeline")
)
