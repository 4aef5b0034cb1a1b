package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyIntent(t *testing.T) {
	cases := []struct {
		text   string
		intent Intent
		prompt string
	}{
		{"ارسم لي قطة", IntentImage, "قطة"},
		{"Draw a red car", IntentImage, "a red car"},
		{"please generate image of mountains", IntentImage, "please generate mountains"},
		{"ارسم", IntentImage, ""},
		{"Create an image of a boat", IntentImage, "a boat"},
		{"امسح الشات", IntentClear, ""},
		{"CLEAR CHAT please", IntentClear, ""},
		{"مين سواك؟", IntentCreator, ""},
		{"Who made you, and draw me", IntentCreator, ""},
		{"كيف حالك", IntentChat, ""},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			intent, prompt := ClassifyIntent(tc.text)
			assert.Equal(t, tc.intent, intent)
			assert.Equal(t, tc.prompt, prompt)
		})
	}
}

func TestIntentString(t *testing.T) {
	assert.Equal(t, "image", IntentImage.String())
	assert.Equal(t, "chat", Intent(42).String())
}
