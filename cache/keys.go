package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Attribute names emitted by the key builders.
const (
	AttrMode             = "mode"
	AttrMessage          = "message"
	AttrDifficulty       = "difficulty"
	AttrScenario         = "scenario"
	AttrConversationHash = "conversationHash"
)

// ChatKeyInput describes a single chat turn sent to the model.
type ChatKeyInput struct {
	// Mode is the practice mode, e.g. "training" or "roleplay".
	Mode string
	// Message is the trainee's raw message. Case and surrounding whitespace
	// are not significant.
	Message string
	// Difficulty is the opponent difficulty level.
	Difficulty int
	// Scenario identifies the negotiation scenario (optional).
	Scenario string
}

// NormalizeMessage trims surrounding whitespace and lower-cases msg.
func NormalizeMessage(msg string) string {
	return strings.ToLower(strings.TrimSpace(msg))
}

// Attributes returns the flat attribute set for the chat turn.
func (in ChatKeyInput) Attributes() Attributes {
	attrs := Attributes{
		AttrMode:       in.Mode,
		AttrMessage:    NormalizeMessage(in.Message),
		AttrDifficulty: in.Difficulty,
	}
	if in.Scenario != "" {
		attrs[AttrScenario] = in.Scenario
	}
	return attrs
}

// ChatKey returns the canonical key for a chat turn. Fields that are not
// valid UTF-8 are rejected with ErrUnsupportedValue.
func ChatKey(in ChatKeyInput) (Key, error) {
	// Checked before NormalizeMessage, which maps invalid bytes to U+FFFD.
	if err := checkUTF8(AttrMode, in.Mode, AttrMessage, in.Message, AttrScenario, in.Scenario); err != nil {
		return "", err
	}
	return Canonicalize(in.Attributes())
}

// Message is one turn of a conversation transcript.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AnalysisKeyInput describes a full-conversation analysis request.
type AnalysisKeyInput struct {
	Messages   []Message
	Difficulty int
	Scenario   string
}

// Attributes returns the flat attribute set for the analysis. The transcript
// is reduced to its ConversationHash.
func (in AnalysisKeyInput) Attributes() Attributes {
	attrs := Attributes{
		AttrConversationHash: ConversationHash(in.Messages),
		AttrDifficulty:       in.Difficulty,
	}
	if in.Scenario != "" {
		attrs[AttrScenario] = in.Scenario
	}
	return attrs
}

// AnalysisKey returns the canonical key for a conversation analysis.
func AnalysisKey(in AnalysisKeyInput) (Key, error) {
	return Canonicalize(in.Attributes())
}

func checkUTF8(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if !utf8.ValidString(pairs[i+1]) {
			return fmt.Errorf("cache: attribute %q: %w: string is not valid UTF-8", pairs[i], ErrUnsupportedValue)
		}
	}
	return nil
}

// ConversationHash returns a hex SHA-256 fingerprint of the ordered
// transcript. Each role and content is length-prefixed so that no two
// different transcripts share an input byte stream; message order is part of
// the input.
func ConversationHash(msgs []Message) string {
	h := sha256.New()
	var buf []byte
	for _, m := range msgs {
		buf = buf[:0]
		buf = appendField(buf, m.Role)
		buf = appendField(buf, m.Content)
		h.Write(buf)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func appendField(buf []byte, s string) []byte {
	buf = strconv.AppendInt(buf, int64(len(s)), 10)
	buf = append(buf, ':')
	buf = append(buf, s...)
	return append(buf, ';')
}
