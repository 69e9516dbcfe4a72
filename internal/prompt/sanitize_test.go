package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeResponse(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
	}{
		{"plain", "Namaste Riya! Kaise ho?", "Namaste Riya! Kaise ho?"},
		{"role prefix", "Assistant: Haan bilkul.", "Haan bilkul."},
		{"role tags", "<|im_start|>Theek hai<|im_end|>", "Theek hai"},
		{"impersonation", "Hi, I am ChatGPT, made by OpenAI.", "Hi, I'm Saathi, here to help you."},
		{"duplicate lines", "Pani piyo.\nPani piyo.\nAaram karo.", "Pani piyo.\nAaram karo."},
		{"blank runs", "One\n\n\n\nTwo", "One\n\nTwo"},
		{"emoji cap", "Yay 🎉🎉🎉🎉🎉", "Yay 🎉🎉🎉"},
		{"empty", "  \n ", FallbackReply},
		{"only prefix", "Assistant:", FallbackReply},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeResponse(tt.reply, "Saathi"))
		})
	}
}

func TestCapEmojiKeepsJoinersOfKeptEmoji(t *testing.T) {
	heart := "❤️"
	got := capEmoji(heart+heart+heart+heart, 2)
	assert.Equal(t, heart+heart, got)
}
