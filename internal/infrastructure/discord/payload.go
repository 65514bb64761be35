package discord

import "NewsRadar/internal/domain"

type payload struct {
	Content         string          `json:"content,omitempty"`
	Username        string          `json:"username,omitempty"`
	AvatarURL       string          `json:"avatar_url,omitempty"`
	Embeds          []embed         `json:"embeds"`
	AllowedMentions allowedMentions `json:"allowed_mentions"`
}

type embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	URL         string       `json:"url,omitempty"`
	Color       int          `json:"color"`
	Fields      []embedField `json:"fields,omitempty"`
	Footer      *embedFooter `json:"footer,omitempty"`
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type embedFooter struct {
	Text string `json:"text"`
}

// allowedMentions with an empty parse list stops headlines from pinging.
type allowedMentions struct {
	Parse []string `json:"parse"`
}

func buildPayload(batch domain.NotificationBatch, username, avatarURL string) payload {
	blocks := batch.Blocks()
	p := payload{
		Content:         batch.Content,
		Username:        username,
		AvatarURL:       avatarURL,
		Embeds:          make([]embed, 0, len(blocks)),
		AllowedMentions: allowedMentions{Parse: []string{}},
	}
	for _, b := range blocks {
		e := embed{
			Title:       b.Title,
			Description: b.Description,
			URL:         b.URL,
			Color:       b.Color,
		}
		for _, f := range b.Fields {
			e.Fields = append(e.Fields, embedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
		}
		if b.Footer != "" {
			e.Footer = &embedFooter{Text: b.Footer}
		}
		p.Embeds = append(p.Embeds, e)
	}
	return p
}
