package line

import "encoding/json"

// ReplyMessage is anything that can go in a reply's messages array.
type ReplyMessage interface {
	replyMessage()
}

type TextMessage struct {
	Text string
}

func (TextMessage) replyMessage() {}

func (m TextMessage) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}{"text", m.Text})
}

type FlexMessage struct {
	AltText  string
	Contents FlexContainer
}

func (FlexMessage) replyMessage() {}

func (m FlexMessage) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type     string        `json:"type"`
		AltText  string        `json:"altText"`
		Contents FlexContainer `json:"contents"`
	}{"flex", m.AltText, m.Contents})
}

// ── Flex containers ──────────────────────────────────────────────────────────

// FlexContainer is a bubble or a carousel.
type FlexContainer interface {
	flexContainer()
}

type Bubble struct {
	Body *Box
}

func (*Bubble) flexContainer() {}

func (b *Bubble) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		Body *Box   `json:"body,omitempty"`
	}{"bubble", b.Body})
}

type Carousel struct {
	Contents []*Bubble
}

func (*Carousel) flexContainer() {}

func (c *Carousel) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type     string    `json:"type"`
		Contents []*Bubble `json:"contents"`
	}{"carousel", c.Contents})
}

// ── Flex components ──────────────────────────────────────────────────────────

type FlexComponent interface {
	flexComponent()
}

type Box struct {
	Layout   string
	Spacing  string
	Contents []FlexComponent
}

func (*Box) flexComponent() {}

func (b *Box) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type     string          `json:"type"`
		Layout   string          `json:"layout"`
		Spacing  string          `json:"spacing,omitempty"`
		Contents []FlexComponent `json:"contents"`
	}{"box", b.Layout, b.Spacing, b.Contents})
}

type Text struct {
	Text   string
	Weight string
	Size   string
	Color  string
	Flex   int
	Wrap   bool
}

func (*Text) flexComponent() {}

func (t *Text) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type   string `json:"type"`
		Text   string `json:"text"`
		Weight string `json:"weight,omitempty"`
		Size   string `json:"size,omitempty"`
		Color  string `json:"color,omitempty"`
		Flex   int    `json:"flex,omitempty"`
		Wrap   bool   `json:"wrap,omitempty"`
	}{"text", t.Text, t.Weight, t.Size, t.Color, t.Flex, t.Wrap})
}
