package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
)

var ErrEmptyImage = errors.New("llm: image has neither data nor url")

// Image is passed inline when Data is set, otherwise by URL.
type Image struct {
	URL      string
	Data     []byte
	MimeType string
}

func (i Image) Validate() error {
	if len(i.Data) == 0 && i.URL == "" {
		return ErrEmptyImage
	}
	return nil
}

// DataURL renders inline image bytes as a data: URL.
func (i Image) DataURL() string {
	mime := i.MimeType
	if mime == "" {
		mime = "image/jpeg"
	}
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(i.Data))
}

type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string // Override default model
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

func ApplyOptions(defaults Options, opts ...Option) Options {
	for _, opt := range opts {
		opt(&defaults)
	}
	return defaults
}

// VisionProvider turns an image into text the assistant can reason about.
type VisionProvider interface {
	DescribeImage(ctx context.Context, image Image, prompt string, options ...Option) (string, error)
}
