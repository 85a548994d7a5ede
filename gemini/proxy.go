// Package gemini is a voice.Session backed by the Gemini Live API.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"google.golang.org/genai"

	"github.com/jerhadf/voice-computer-use/messages"
	"github.com/jerhadf/voice-computer-use/voice"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "models/gemini-2.5-flash-native-audio-preview-12-2025"

// ErrCodeGemini tags errors reported through Handlers.OnError.
const ErrCodeGemini = "gemini_error"

// ErrUnsupported is returned for EVI operations Gemini Live has no equivalent for.
var ErrUnsupported = errors.New("gemini: operation not supported")

// Config selects the model and how the live session is set up.
type Config struct {
	APIKey       string
	Model        string
	SystemPrompt string
	Voice        string
	Tools        []*genai.Tool
}

// Proxy manages one Gemini Live session using the official SDK.
type Proxy struct {
	cfg    Config
	client *genai.Client

	mu         sync.RWMutex
	handlers   voice.Handlers
	session    *genai.Session
	state      voice.ReadyState
	closing    bool
	muted      bool
	audioMuted bool
	// toolNames maps pending tool call ids to function names; Gemini needs
	// the name back in the response.
	toolNames map[string]string
}

var _ voice.Session = (*Proxy)(nil)

// NewProxy creates the GenAI client. Nothing is dialed until Connect.
func NewProxy(ctx context.Context, cfg Config) (*Proxy, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Voice == "" {
		cfg.Voice = "Zephyr"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &Proxy{
		cfg:       cfg,
		client:    client,
		toolNames: make(map[string]string),
	}, nil
}

// SetHandlers installs the callbacks. Call it before Connect.
func (gp *Proxy) SetHandlers(h voice.Handlers) {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	gp.handlers = h
}

func (gp *Proxy) liveConfig() *genai.LiveConnectConfig {
	config := &genai.LiveConnectConfig{
		ResponseModalities:       []genai.Modality{genai.ModalityAudio},
		InputAudioTranscription:  &genai.AudioTranscriptionConfig{},
		OutputAudioTranscription: &genai.AudioTranscriptionConfig{},
		Tools:                    gp.cfg.Tools,
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{
					VoiceName: gp.cfg.Voice,
				},
			},
		},
	}
	if gp.cfg.SystemPrompt != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: gp.cfg.SystemPrompt}},
		}
	}
	return config
}

// Connect opens the Live session in the background.
func (gp *Proxy) Connect(ctx context.Context) error {
	gp.mu.Lock()
	if gp.state == voice.ReadyStateConnecting || gp.state == voice.ReadyStateOpen {
		gp.mu.Unlock()
		return nil
	}
	gp.state = voice.ReadyStateConnecting
	gp.closing = false
	gp.session = nil
	gp.mu.Unlock()

	go gp.setup(context.WithoutCancel(ctx))
	return nil
}

func (gp *Proxy) setup(ctx context.Context) {
	session, err := gp.client.Live.Connect(ctx, gp.cfg.Model, gp.liveConfig())

	gp.mu.Lock()
	if gp.closing || gp.state != voice.ReadyStateConnecting {
		gp.mu.Unlock()
		if session != nil {
			session.Close()
		}
		return
	}
	if err != nil {
		gp.state = voice.ReadyStateClosed
		h := gp.handlers
		gp.mu.Unlock()
		log.Printf("❌ Gemini connect failed: %v", err)
		if h.OnError != nil {
			h.OnError(messages.ErrorPayload{Code: ErrCodeGemini, Message: err.Error()})
		}
		if h.OnStateChange != nil {
			h.OnStateChange()
		}
		return
	}
	gp.session = session
	gp.state = voice.ReadyStateOpen
	h := gp.handlers
	gp.mu.Unlock()

	log.Printf("✅ Connected to Gemini Live via SDK (%s)", gp.cfg.Model)
	if h.OnOpen != nil {
		h.OnOpen()
	}
	if h.OnStateChange != nil {
		h.OnStateChange()
	}
	gp.receive(session)
}

// receive forwards translated server messages until the session ends.
func (gp *Proxy) receive(session *genai.Session) {
	for {
		resp, err := session.Receive()
		if err != nil {
			gp.finish(session, err)
			return
		}
		gp.rememberToolCalls(resp)

		gp.mu.RLock()
		h := gp.handlers
		gp.mu.RUnlock()
		for _, msg := range translate(resp) {
			if h.OnMessage != nil {
				h.OnMessage(msg)
			}
		}
	}
}

func (gp *Proxy) finish(session *genai.Session, recvErr error) {
	gp.mu.Lock()
	closing := gp.closing
	current := gp.session == session
	if current {
		gp.session = nil
		gp.state = voice.ReadyStateClosed
	}
	h := gp.handlers
	gp.mu.Unlock()

	// A later Connect superseded this session; its end is not news.
	if !current {
		session.Close()
		return
	}

	if !closing {
		log.Printf("❌ Gemini receive error: %v", recvErr)
		if h.OnError != nil {
			h.OnError(messages.ErrorPayload{Code: ErrCodeGemini, Message: recvErr.Error()})
		}
	}
	log.Println("🔌 Gemini session closed")
	if h.OnClose != nil {
		h.OnClose()
	}
	if h.OnStateChange != nil {
		h.OnStateChange()
	}
}

func (gp *Proxy) rememberToolCalls(resp *genai.LiveServerMessage) {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	if resp.ToolCall != nil {
		for _, call := range resp.ToolCall.FunctionCalls {
			if call != nil && call.ID != "" {
				gp.toolNames[call.ID] = call.Name
			}
		}
	}
	if resp.ToolCallCancellation != nil {
		for _, id := range resp.ToolCallCancellation.IDs {
			delete(gp.toolNames, id)
		}
	}
}

// Disconnect closes the Live session or abandons a pending setup.
func (gp *Proxy) Disconnect() error {
	gp.mu.Lock()
	session := gp.session
	if gp.state == voice.ReadyStateConnecting || gp.state == voice.ReadyStateOpen {
		gp.state = voice.ReadyStateClosed
	}
	gp.closing = true
	gp.mu.Unlock()

	if session != nil {
		return session.Close()
	}
	return nil
}

func (gp *Proxy) openSession() (*genai.Session, error) {
	gp.mu.RLock()
	defer gp.mu.RUnlock()
	if gp.state != voice.ReadyStateOpen || gp.session == nil {
		return nil, voice.ErrNotConnected
	}
	return gp.session, nil
}

// SendUserInput sends text as a complete user turn. Empty input is dropped:
// Gemini has no queued audio to flush that way.
func (gp *Proxy) SendUserInput(text string) error {
	session, err := gp.openSession()
	if err != nil {
		return err
	}
	if text == "" {
		return nil
	}
	turnComplete := true
	err = session.SendClientContent(genai.LiveClientContentInput{
		Turns: []*genai.Content{
			{Role: genai.RoleUser, Parts: []*genai.Part{{Text: text}}},
		},
		TurnComplete: &turnComplete,
	})
	if err != nil {
		return fmt.Errorf("failed to send text: %w", err)
	}
	log.Printf("📤 Sent text to Gemini: %s", text)
	return nil
}

// SendAssistantInput adds a model turn to the conversation context.
func (gp *Proxy) SendAssistantInput(text string) error {
	session, err := gp.openSession()
	if err != nil {
		return err
	}
	turnComplete := false
	err = session.SendClientContent(genai.LiveClientContentInput{
		Turns: []*genai.Content{
			{Role: genai.RoleModel, Parts: []*genai.Part{{Text: text}}},
		},
		TurnComplete: &turnComplete,
	})
	if err != nil {
		return fmt.Errorf("failed to send assistant text: %w", err)
	}
	return nil
}

// SendToolMessage converts an EVI tool_response or tool_error into a
// function response.
func (gp *Proxy) SendToolMessage(msg json.RawMessage) error {
	session, err := gp.openSession()
	if err != nil {
		return err
	}

	gp.mu.Lock()
	resp, err := functionResponse(msg, gp.toolNames)
	if err == nil {
		delete(gp.toolNames, resp.ID)
	}
	gp.mu.Unlock()
	if err != nil {
		return err
	}

	err = session.SendToolResponse(genai.LiveToolResponseInput{
		FunctionResponses: []*genai.FunctionResponse{resp},
	})
	if err != nil {
		return fmt.Errorf("failed to send tool response: %w", err)
	}
	log.Printf("📤 Sent tool response %s to Gemini", resp.ID)
	return nil
}

// SendSessionSettings, PauseAssistant and ResumeAssistant have no Live API
// equivalent and always fail with ErrUnsupported.
func (gp *Proxy) SendSessionSettings(json.RawMessage) error { return ErrUnsupported }
func (gp *Proxy) PauseAssistant() error                     { return ErrUnsupported }
func (gp *Proxy) ResumeAssistant() error                    { return ErrUnsupported }

// Mute marks the microphone muted. The flag is local to the proxy.
func (gp *Proxy) Mute() {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	gp.muted = true
}

// Unmute clears the microphone mute flag.
func (gp *Proxy) Unmute() {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	gp.muted = false
}

// MuteAudio marks model audio playback muted.
func (gp *Proxy) MuteAudio() {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	gp.audioMuted = true
}

// UnmuteAudio clears the playback mute flag.
func (gp *Proxy) UnmuteAudio() {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	gp.audioMuted = false
}

// IsMuted reports the microphone mute flag.
func (gp *Proxy) IsMuted() bool {
	gp.mu.RLock()
	defer gp.mu.RUnlock()
	return gp.muted
}

// IsAudioMuted reports the playback mute flag.
func (gp *Proxy) IsAudioMuted() bool {
	gp.mu.RLock()
	defer gp.mu.RUnlock()
	return gp.audioMuted
}

// ReadyState returns the Live session state.
func (gp *Proxy) ReadyState() voice.ReadyState {
	gp.mu.RLock()
	defer gp.mu.RUnlock()
	return gp.state
}
