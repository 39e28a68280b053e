// Package live implements the realtime mentoring session: a
// bidirectional websocket channel to the Gemini Live API carrying
// microphone PCM and camera frames out, and synthesized audio,
// transcripts, and interruption signals back.
package live

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/senseihq/sensei-go/pkg/codec"
)

// Media MIME types on the outbound path.
const (
	MIMEAudioPCM16k = "audio/pcm;rate=16000"
	MIMEImageJPEG   = "image/jpeg"
)

// setupMessage is the first client frame of a BidiGenerateContent session.
type setupMessage struct {
	Setup setupPayload `json:"setup"`
}

type setupPayload struct {
	Model                    string            `json:"model"`
	GenerationConfig         *generationConfig `json:"generationConfig,omitempty"`
	SystemInstruction        *content          `json:"systemInstruction,omitempty"`
	InputAudioTranscription  *struct{}         `json:"inputAudioTranscription,omitempty"`
	OutputAudioTranscription *struct{}         `json:"outputAudioTranscription,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string      `json:"responseModalities,omitempty"`
	SpeechConfig       *speechConfig `json:"speechConfig,omitempty"`
}

type speechConfig struct {
	VoiceConfig *voiceConfig `json:"voiceConfig,omitempty"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig *prebuiltVoiceConfig `json:"prebuiltVoiceConfig,omitempty"`
}

type prebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName,omitempty"`
}

type content struct {
	Parts []part `json:"parts,omitempty"`
	Role  string `json:"role,omitempty"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

// realtimeInputMessage carries one outbound media chunk.
type realtimeInputMessage struct {
	RealtimeInput realtimeInput `json:"realtimeInput"`
}

type realtimeInput struct {
	MediaChunks []mediaChunk `json:"mediaChunks"`
}

type mediaChunk struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

// serverMessage is the envelope of every inbound text frame.
type serverMessage struct {
	SetupComplete *struct{}      `json:"setupComplete,omitempty"`
	ServerContent *serverContent `json:"serverContent,omitempty"`
	GoAway        *goAway        `json:"goAway,omitempty"`
}

type serverContent struct {
	ModelTurn           *content       `json:"modelTurn,omitempty"`
	TurnComplete        bool           `json:"turnComplete,omitempty"`
	Interrupted         bool           `json:"interrupted,omitempty"`
	InputTranscription  *transcription `json:"inputTranscription,omitempty"`
	OutputTranscription *transcription `json:"outputTranscription,omitempty"`
}

type transcription struct {
	Text string `json:"text,omitempty"`
}

type goAway struct {
	TimeLeft string `json:"timeLeft,omitempty"`
}

// TranscriptSource tags which side of the conversation a transcript line
// came from.
type TranscriptSource string

const (
	TranscriptInput  TranscriptSource = "input"  // the learner
	TranscriptOutput TranscriptSource = "output" // the mentor
)

// Event is an inbound session event.
type Event interface {
	eventType() string
}

// SetupCompleteEvent acknowledges the session configuration.
type SetupCompleteEvent struct{}

func (SetupCompleteEvent) eventType() string { return "setup_complete" }

// TranscriptEvent carries a transcript fragment for display.
type TranscriptEvent struct {
	Source TranscriptSource
	Text   string
}

func (TranscriptEvent) eventType() string { return "transcript" }

// AudioEvent carries decoded model audio (24kHz mono PCM16).
type AudioEvent struct {
	MIMEType string
	Data     []byte
}

func (AudioEvent) eventType() string { return "audio" }

// InterruptedEvent means the learner barged in; all scheduled playback
// must stop immediately.
type InterruptedEvent struct{}

func (InterruptedEvent) eventType() string { return "interrupted" }

// TurnCompleteEvent marks the end of a model turn.
type TurnCompleteEvent struct{}

func (TurnCompleteEvent) eventType() string { return "turn_complete" }

// ClosedEvent means the remote is ending the session.
type ClosedEvent struct {
	Reason string
}

func (ClosedEvent) eventType() string { return "closed" }

// UnknownEvent preserves frames this client does not understand.
type UnknownEvent struct {
	Raw json.RawMessage
}

func (UnknownEvent) eventType() string { return "unknown" }

// decodeServerFrame turns one inbound text frame into its events. A
// single frame may carry transcription, audio, and an interruption flag
// at once; events are emitted in that order, with interruption first so
// stale playback is cut before new audio is scheduled.
func decodeServerFrame(data []byte) ([]Event, error) {
	var msg serverMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode server frame: %w", err)
	}

	var events []Event
	if msg.SetupComplete != nil {
		events = append(events, SetupCompleteEvent{})
	}
	if msg.GoAway != nil {
		events = append(events, ClosedEvent{Reason: strings.TrimSpace("server go_away " + msg.GoAway.TimeLeft)})
	}
	sc := msg.ServerContent
	if sc == nil {
		if len(events) == 0 {
			events = append(events, UnknownEvent{Raw: append(json.RawMessage(nil), data...)})
		}
		return events, nil
	}

	if sc.Interrupted {
		events = append(events, InterruptedEvent{})
	}
	if sc.InputTranscription != nil && sc.InputTranscription.Text != "" {
		events = append(events, TranscriptEvent{Source: TranscriptInput, Text: sc.InputTranscription.Text})
	}
	if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" {
		events = append(events, TranscriptEvent{Source: TranscriptOutput, Text: sc.OutputTranscription.Text})
	}
	if sc.ModelTurn != nil {
		for _, p := range sc.ModelTurn.Parts {
			if p.InlineData == nil || p.InlineData.Data == "" {
				continue
			}
			audio, err := codec.DecodeBase64(p.InlineData.Data)
			if err != nil {
				return nil, fmt.Errorf("decode audio payload: %w", err)
			}
			events = append(events, AudioEvent{MIMEType: p.InlineData.MIMEType, Data: audio})
		}
	}
	if sc.TurnComplete {
		events = append(events, TurnCompleteEvent{})
	}

	if len(events) == 0 {
		events = append(events, UnknownEvent{Raw: append(json.RawMessage(nil), data...)})
	}
	return events, nil
}
