package api

import (
	"errors"
	"fmt"

	"github.com/danphilibin/relay/pkg/util"
)

type (
	// BlockType names the kind of rich output block
	BlockType string

	// OutputBlock is a unit of rich output displayed to the user. Which
	// fields are meaningful depends on Type
	OutputBlock struct {
		Type        BlockType      `json:"type"`
		Content     string         `json:"content,omitempty"`
		Text        string         `json:"text,omitempty"`
		Title       string         `json:"title,omitempty"`
		Columns     []string       `json:"columns,omitempty"`
		Rows        [][]string     `json:"rows,omitempty"`
		Code        string         `json:"code,omitempty"`
		Language    string         `json:"language,omitempty"`
		Src         string         `json:"src,omitempty"`
		Alt         string         `json:"alt,omitempty"`
		URL         string         `json:"url,omitempty"`
		Description string         `json:"description,omitempty"`
		Buttons     []OutputButton `json:"buttons,omitempty"`
	}

	// OutputButton is a button in a buttons block, optionally linking out
	OutputButton struct {
		Label  string `json:"label"`
		URL    string `json:"url,omitempty"`
		Intent Intent `json:"intent,omitempty"`
	}
)

const (
	BlockMarkdown BlockType = "markdown"
	BlockText     BlockType = "text"
	BlockTable    BlockType = "table"
	BlockCode     BlockType = "code"
	BlockImage    BlockType = "image"
	BlockLink     BlockType = "link"
	BlockButtons  BlockType = "buttons"
)

var (
	ErrBlockTypeInvalid = errors.New("invalid output block type")
	ErrBlockIncomplete  = errors.New("output block missing required field")
)

var validBlockTypes = util.SetOf(
	BlockMarkdown, BlockText, BlockTable, BlockCode, BlockImage, BlockLink,
	BlockButtons,
)

// MarkdownBlock creates a markdown output block
func MarkdownBlock(content string) *OutputBlock {
	return &OutputBlock{Type: BlockMarkdown, Content: content}
}

// TextBlock creates a plain text output block
func TextBlock(text string) *OutputBlock {
	return &OutputBlock{Type: BlockText, Text: text}
}

// TableBlock creates a table output block
func TableBlock(title string, columns []string, rows [][]string) *OutputBlock {
	return &OutputBlock{
		Type:    BlockTable,
		Title:   title,
		Columns: columns,
		Rows:    rows,
	}
}

// CodeBlock creates a code output block
func CodeBlock(code, language string) *OutputBlock {
	return &OutputBlock{Type: BlockCode, Code: code, Language: language}
}

// ImageBlock creates an image output block
func ImageBlock(src, alt string) *OutputBlock {
	return &OutputBlock{Type: BlockImage, Src: src, Alt: alt}
}

// LinkBlock creates a link output block
func LinkBlock(url, title, description string) *OutputBlock {
	return &OutputBlock{
		Type:        BlockLink,
		URL:         url,
		Title:       title,
		Description: description,
	}
}

// ButtonsBlock creates a buttons output block
func ButtonsBlock(buttons ...OutputButton) *OutputBlock {
	return &OutputBlock{Type: BlockButtons, Buttons: buttons}
}

// Validate checks that the block carries the fields its type requires
func (b *OutputBlock) Validate() error {
	if !validBlockTypes.Contains(b.Type) {
		return fmt.Errorf("%w: %q", ErrBlockTypeInvalid, b.Type)
	}
	switch b.Type {
	case BlockTable:
		if len(b.Columns) == 0 {
			return fmt.Errorf("%w: columns", ErrBlockIncomplete)
		}
	case BlockImage:
		if b.Src == "" {
			return fmt.Errorf("%w: src", ErrBlockIncomplete)
		}
	case BlockLink:
		if b.URL == "" {
			return fmt.Errorf("%w: url", ErrBlockIncomplete)
		}
	case BlockButtons:
		if len(b.Buttons) == 0 {
			return fmt.Errorf("%w: buttons", ErrBlockIncomplete)
		}
		for _, btn := range b.Buttons {
			if btn.Label == "" {
				return ErrButtonLabelEmpty
			}
		}
	}
	return nil
}
