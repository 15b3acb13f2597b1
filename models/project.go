package models

import "github.com/ethereum/go-ethereum/common"

// Project is a funding recipient as listed in a recipient registry.
type Project struct {
	ID                string         `json:"id"`
	Address           common.Address `json:"address"`
	Name              string         `json:"name"`
	Tagline           string         `json:"tagline,omitempty"`
	Description       string         `json:"description,omitempty"`
	Category          string         `json:"category,omitempty"`
	ProblemSpace      string         `json:"problem_space,omitempty"`
	Plans             string         `json:"plans,omitempty"`
	TeamName          string         `json:"team_name,omitempty"`
	TeamDescription   string         `json:"team_description,omitempty"`
	GithubURL         string         `json:"github_url,omitempty"`
	RadicleURL        string         `json:"radicle_url,omitempty"`
	WebsiteURL        string         `json:"website_url,omitempty"`
	TwitterURL        string         `json:"twitter_url,omitempty"`
	DiscordURL        string         `json:"discord_url,omitempty"`
	BannerImageURL    string         `json:"banner_image_url,omitempty"`
	ThumbnailImageURL string         `json:"thumbnail_image_url,omitempty"`
	ImageURL          string         `json:"image_url,omitempty"`
	Index             uint64         `json:"index"`
	IsHidden          bool           `json:"is_hidden"`
	IsLocked          bool           `json:"is_locked"`
}

// CartItem is a project together with the contribution committed to it.
// Amount is already formatted for display.
type CartItem struct {
	Project
	Amount    string `json:"amount"`
	IsCleared bool   `json:"is_cleared"`
}
