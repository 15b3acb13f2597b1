package subgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"committed-cart/models"
	"committed-cart/registry"
)

const recipientQuery = `query GetRecipientByIndex($registryAddress: String!, $recipientIndex: BigInt!) {
  recipients(
    where: { recipientRegistry: $registryAddress, recipientIndex: $recipientIndex }
    first: 1
  ) {
    id
    recipientIndex
    recipientAddress
    recipientMetadata
    rejected
    verified
  }
}`

type recipientEntity struct {
	ID                string `json:"id"`
	RecipientIndex    string `json:"recipientIndex"`
	RecipientAddress  string `json:"recipientAddress"`
	RecipientMetadata string `json:"recipientMetadata"`
	Rejected          bool   `json:"rejected"`
	Verified          bool   `json:"verified"`
}

type recipientsData struct {
	Recipients []recipientEntity `json:"recipients"`
}

// recipientMetadata is the JSON document stored with each registry entry.
type recipientMetadata struct {
	Name               string `json:"name"`
	Tagline            string `json:"tagline"`
	Description        string `json:"description"`
	Category           string `json:"category"`
	ProblemSpace       string `json:"problemSpace"`
	Plans              string `json:"plans"`
	TeamName           string `json:"teamName"`
	TeamDescription    string `json:"teamDescription"`
	GithubURL          string `json:"githubUrl"`
	RadicleURL         string `json:"radicleUrl"`
	WebsiteURL         string `json:"websiteUrl"`
	TwitterURL         string `json:"twitterUrl"`
	DiscordURL         string `json:"discordUrl"`
	BannerImageHash    string `json:"bannerImageHash"`
	ThumbnailImageHash string `json:"thumbnailImageHash"`
	ImageHash          string `json:"imageHash"`
}

// ProjectByIndex looks up the recipient registered under index in the given
// registry. Rejected recipients are hidden and unverified ones are locked.
func (c *Client) ProjectByIndex(ctx context.Context, registryAddress common.Address, index uint64) (*models.Project, error) {
	vars := map[string]any{
		"registryAddress": strings.ToLower(registryAddress.Hex()),
		"recipientIndex":  strconv.FormatUint(index, 10),
	}

	var data recipientsData
	if err := c.Query(ctx, recipientQuery, vars, &data); err != nil {
		return nil, fmt.Errorf("fetch recipient %d: %w", index, err)
	}
	if len(data.Recipients) == 0 {
		return nil, registry.ErrProjectNotFound
	}
	return c.decodeRecipient(data.Recipients[0], index)
}

func (c *Client) decodeRecipient(r recipientEntity, index uint64) (*models.Project, error) {
	var meta recipientMetadata
	if r.RecipientMetadata != "" {
		if err := json.Unmarshal([]byte(r.RecipientMetadata), &meta); err != nil {
			return nil, fmt.Errorf("recipient %s: invalid metadata: %w", r.ID, err)
		}
	}

	project := &models.Project{
		ID:                r.ID,
		Name:              meta.Name,
		Tagline:           meta.Tagline,
		Description:       meta.Description,
		Category:          meta.Category,
		ProblemSpace:      meta.ProblemSpace,
		Plans:             meta.Plans,
		TeamName:          meta.TeamName,
		TeamDescription:   meta.TeamDescription,
		GithubURL:         meta.GithubURL,
		RadicleURL:        meta.RadicleURL,
		WebsiteURL:        meta.WebsiteURL,
		TwitterURL:        meta.TwitterURL,
		DiscordURL:        meta.DiscordURL,
		BannerImageURL:    c.ipfsURL(meta.BannerImageHash),
		ThumbnailImageURL: c.ipfsURL(meta.ThumbnailImageHash),
		ImageURL:          c.ipfsURL(meta.ImageHash),
		Index:             index,
		IsHidden:          r.Rejected,
		IsLocked:          !r.Verified,
	}
	if r.RecipientAddress != "" {
		if !common.IsHexAddress(r.RecipientAddress) {
			return nil, fmt.Errorf("recipient %s: invalid address %q", r.ID, r.RecipientAddress)
		}
		project.Address = common.HexToAddress(r.RecipientAddress)
	}
	return project, nil
}

func (c *Client) ipfsURL(hash string) string {
	if hash == "" {
		return ""
	}
	return c.config.IPFSGateway + hash
}
