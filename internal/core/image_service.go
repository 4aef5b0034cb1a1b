package core

import (
	"context"
	"encoding/base64"
	"fmt"

	genaisdk "google.golang.org/genai"
)

// imageClient wraps the genai SDK, which carries the Imagen endpoint the chat SDK lacks.
type imageClient struct {
	client *genaisdk.Client
}

func newImageClient(ctx context.Context, apiKey string) (imageClient, error) {
	client, err := genaisdk.NewClient(ctx, &genaisdk.ClientConfig{
		APIKey:  apiKey,
		Backend: genaisdk.BackendGeminiAPI,
	})
	if err != nil {
		return imageClient{}, fmt.Errorf("failed to create GenAI image client: %w", err)
	}
	return imageClient{client: client}, nil
}

func (c imageClient) generate(ctx context.Context, model, prompt string) (string, error) {
	resp, err := c.client.Models.GenerateImages(ctx, model, prompt, &genaisdk.GenerateImagesConfig{
		NumberOfImages: 1,
		OutputMIMEType: "image/jpeg",
	})
	if err != nil {
		return "", fmt.Errorf("imagen request failed: %w", err)
	}
	if resp == nil || len(resp.GeneratedImages) == 0 {
		return "", ErrNoImage
	}
	img := resp.GeneratedImages[0]
	if img == nil || img.Image == nil || len(img.Image.ImageBytes) == 0 {
		return "", ErrNoImage
	}
	return imageDataURL("image/jpeg", img.Image.ImageBytes), nil
}

func imageDataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
