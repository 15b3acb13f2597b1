package subgraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/require"

	"committed-cart/registry"
	"committed-cart/service"
)

type graphQLHandler func(t *testing.T, req graphQLRequest) (int, any)

func newTestClient(t *testing.T, handler graphQLHandler) (*Client, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req graphQLRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		status, body := handler(t, req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if body != nil {
			json.NewEncoder(w).Encode(body)
		}
	}))
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.URL = srv.URL
	cfg.RetryBackoff = time.Millisecond
	client, err := NewClient(cfg)
	require.NoError(t, err)
	return client, &calls
}

func dataResponse(data any) map[string]any {
	return map[string]any{"data": data}
}

func TestNewClientRequiresURL(t *testing.T) {
	_, err := NewClient(DefaultConfig())
	require.ErrorIs(t, err, ErrMissingURL)

	_, err = NewClient(nil)
	require.ErrorIs(t, err, ErrMissingURL)
}

func TestQueryForwardsVariables(t *testing.T) {
	client, _ := newTestClient(t, func(t *testing.T, req graphQLRequest) (int, any) {
		require.Equal(t, "{ ok }", req.Query)
		require.Equal(t, "0xabc", req.Variables["id"])
		return http.StatusOK, dataResponse(map[string]any{"ok": true})
	})

	var out struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, client.Query(context.Background(), "{ ok }", map[string]any{"id": "0xabc"}, &out))
	require.True(t, out.OK)
}

func TestQueryRetriesServerErrors(t *testing.T) {
	var failures atomic.Int32
	client, calls := newTestClient(t, func(*testing.T, graphQLRequest) (int, any) {
		if failures.Add(1) <= 2 {
			return http.StatusServiceUnavailable, nil
		}
		return http.StatusOK, dataResponse(map[string]any{"ok": true})
	})

	var out struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, client.Query(context.Background(), "{ ok }", nil, &out))
	require.True(t, out.OK)
	require.Equal(t, int32(3), calls.Load())
}

func TestQueryFailures(t *testing.T) {
	t.Run("retries exhausted", func(t *testing.T) {
		client, calls := newTestClient(t, func(*testing.T, graphQLRequest) (int, any) {
			return http.StatusInternalServerError, nil
		})
		client.config.MaxRetries = 1

		err := client.Query(context.Background(), "{ ok }", nil, nil)
		require.ErrorIs(t, err, ErrUnexpectedStatus)
		require.Equal(t, int32(2), calls.Load())
	})

	t.Run("client error not retried", func(t *testing.T) {
		client, calls := newTestClient(t, func(*testing.T, graphQLRequest) (int, any) {
			return http.StatusBadRequest, nil
		})

		err := client.Query(context.Background(), "{ ok }", nil, nil)
		require.ErrorIs(t, err, ErrUnexpectedStatus)
		require.Equal(t, int32(1), calls.Load())
	})

	t.Run("graphql errors", func(t *testing.T) {
		client, calls := newTestClient(t, func(*testing.T, graphQLRequest) (int, any) {
			return http.StatusOK, map[string]any{
				"errors": []map[string]any{{"message": "bad field"}, {"message": "bad arg"}},
			}
		})

		err := client.Query(context.Background(), "{ ok }", nil, nil)
		var qe *QueryError
		require.True(t, errors.As(err, &qe))
		require.Equal(t, []string{"bad field", "bad arg"}, qe.Messages)
		require.Equal(t, int32(1), calls.Load())
	})

	t.Run("cancelled context", func(t *testing.T) {
		client, _ := newTestClient(t, func(*testing.T, graphQLRequest) (int, any) {
			return http.StatusServiceUnavailable, nil
		})
		client.config.RetryBackoff = time.Hour

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		err := client.Query(ctx, "{ ok }", nil, nil)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

type testMessage struct {
	id       string
	block    int
	logIndex int
}

func TestFetchMessagesPagesAndOrders(t *testing.T) {
	round := common.HexToAddress("0x00000000000000000000000000000000000000AA")
	contributor := common.HexToAddress("0x00000000000000000000000000000000000000BB")

	// Served in block order only, log indexes within a block are shuffled.
	stored := []testMessage{
		{"m-1-5", 1, 5},
		{"m-1-2", 1, 2},
		{"m-2-0", 2, 0},
		{"m-3-9", 3, 9},
		{"m-3-1", 3, 1},
	}

	client, calls := newTestClient(t, func(t *testing.T, req graphQLRequest) (int, any) {
		require.Contains(t, req.Query, "messages(")
		require.Equal(t, strings.ToLower(round.Hex()), req.Variables["fundingRoundAddress"])
		require.Equal(t, strings.ToLower(contributor.Hex()), req.Variables["contributorAddress"])
		require.Equal(t, "0xabcdef", req.Variables["pubKey"])
		require.Equal(t, "0x0123", req.Variables["coordinatorPubKey"])

		first := int(req.Variables["first"].(float64))
		skip := int(req.Variables["skip"].(float64))
		end := min(skip+first, len(stored))

		page := make([]map[string]any, 0)
		for _, m := range stored[min(skip, len(stored)):end] {
			page = append(page, map[string]any{
				"id":          m.id,
				"data":        hexutil.Encode([]byte(m.id)),
				"publicKey":   "0x02aa",
				"blockNumber": fmt.Sprint(m.block),
				"logIndex":    fmt.Sprint(m.logIndex),
				"timestamp":   "1700000000",
			})
		}
		return http.StatusOK, dataResponse(map[string]any{"messages": page})
	})
	client.config.PageSize = 2

	msgs, err := client.FetchMessages(context.Background(), service.MessageQuery{
		FundingRoundAddress: round,
		ContributorKey:      "0xABCDEF",
		CoordinatorPubKey:   "0x0123",
		ContributorAddress:  contributor,
	})
	require.NoError(t, err)
	require.Equal(t, int32(3), calls.Load())

	var ids []string
	for _, m := range msgs {
		ids = append(ids, m.ID)
		require.Equal(t, []byte(m.ID), m.Data)
		require.Equal(t, []byte{0x02, 0xaa}, m.EncPubKey)
		require.Equal(t, int64(1700000000), m.Timestamp)
	}
	require.Equal(t, []string{"m-1-2", "m-1-5", "m-2-0", "m-3-1", "m-3-9"}, ids)
}

func TestFetchMessagesEmpty(t *testing.T) {
	client, _ := newTestClient(t, func(*testing.T, graphQLRequest) (int, any) {
		return http.StatusOK, dataResponse(map[string]any{"messages": []any{}})
	})

	msgs, err := client.FetchMessages(context.Background(), service.MessageQuery{})
	require.NoError(t, err)
	require.NotNil(t, msgs)
	require.Empty(t, msgs)
}

func TestFetchMessagesInvalidData(t *testing.T) {
	client, _ := newTestClient(t, func(*testing.T, graphQLRequest) (int, any) {
		return http.StatusOK, dataResponse(map[string]any{"messages": []map[string]any{
			{"id": "m", "data": "not-hex", "publicKey": "0x02", "blockNumber": "1", "logIndex": "0", "timestamp": "0"},
		}})
	})

	_, err := client.FetchMessages(context.Background(), service.MessageQuery{})
	require.ErrorContains(t, err, "invalid data")
}

func TestProjectByIndex(t *testing.T) {
	registryAddr := common.HexToAddress("0x00000000000000000000000000000000000000CC")
	recipient := common.HexToAddress("0x00000000000000000000000000000000000000DD")

	metadata, err := json.Marshal(map[string]any{
		"name":            "Gitcoin",
		"tagline":         "Fund public goods",
		"category":        "Tooling",
		"githubUrl":       "https://github.com/example",
		"bannerImageHash": "QmBanner",
		"imageHash":       "QmImage",
	})
	require.NoError(t, err)

	client, _ := newTestClient(t, func(t *testing.T, req graphQLRequest) (int, any) {
		require.Contains(t, req.Query, "recipients(")
		require.Equal(t, strings.ToLower(registryAddr.Hex()), req.Variables["registryAddress"])
		if req.Variables["recipientIndex"] != "7" {
			return http.StatusOK, dataResponse(map[string]any{"recipients": []any{}})
		}
		return http.StatusOK, dataResponse(map[string]any{"recipients": []map[string]any{{
			"id":                "0xrecipient",
			"recipientIndex":    "7",
			"recipientAddress":  recipient.Hex(),
			"recipientMetadata": string(metadata),
			"rejected":          true,
			"verified":          false,
		}}})
	})

	project, err := client.ProjectByIndex(context.Background(), registryAddr, 7)
	require.NoError(t, err)
	require.Equal(t, "0xrecipient", project.ID)
	require.Equal(t, recipient, project.Address)
	require.Equal(t, "Gitcoin", project.Name)
	require.Equal(t, "Fund public goods", project.Tagline)
	require.Equal(t, "Tooling", project.Category)
	require.Equal(t, "https://github.com/example", project.GithubURL)
	require.Equal(t, "https://ipfs.io/ipfs/QmBanner", project.BannerImageURL)
	require.Equal(t, "https://ipfs.io/ipfs/QmImage", project.ImageURL)
	require.Empty(t, project.ThumbnailImageURL)
	require.Equal(t, uint64(7), project.Index)
	require.True(t, project.IsHidden)
	require.True(t, project.IsLocked)

	_, err = client.ProjectByIndex(context.Background(), registryAddr, 8)
	require.ErrorIs(t, err, registry.ErrProjectNotFound)
}

func TestProjectByIndexInvalidMetadata(t *testing.T) {
	client, _ := newTestClient(t, func(*testing.T, graphQLRequest) (int, any) {
		return http.StatusOK, dataResponse(map[string]any{"recipients": []map[string]any{{
			"id":                "0xrecipient",
			"recipientIndex":    "1",
			"recipientMetadata": "{not json",
			"verified":          true,
		}}})
	})

	_, err := client.ProjectByIndex(context.Background(), common.Address{}, 1)
	require.Error(t, err)
	require.NotErrorIs(t, err, registry.ErrProjectNotFound)
}

func TestRoundInfo(t *testing.T) {
	roundAddr := common.HexToAddress("0x00000000000000000000000000000000000000EE")
	registryAddr := common.HexToAddress("0x00000000000000000000000000000000000000CC")
	token := common.HexToAddress("0x00000000000000000000000000000000000000FF")

	client, _ := newTestClient(t, func(t *testing.T, req graphQLRequest) (int, any) {
		require.Contains(t, req.Query, "fundingRound(")
		if req.Variables["fundingRoundAddress"] != strings.ToLower(roundAddr.Hex()) {
			return http.StatusOK, dataResponse(map[string]any{"fundingRound": nil})
		}
		return http.StatusOK, dataResponse(map[string]any{"fundingRound": map[string]any{
			"id":                       strings.ToLower(roundAddr.Hex()),
			"coordinatorPubKey":        "0x02abcd",
			"voiceCreditFactor":        "1000000000000",
			"nativeTokenAddress":       token.Hex(),
			"nativeTokenSymbol":        "DAI",
			"nativeTokenDecimals":      "18",
			"recipientRegistryAddress": registryAddr.Hex(),
		}})
	})

	round, err := client.RoundInfo(context.Background(), roundAddr)
	require.NoError(t, err)
	require.Equal(t, roundAddr, round.FundingRoundAddress)
	require.Equal(t, "0x02abcd", round.CoordinatorPubKey)
	require.Equal(t, 0, round.VoiceCreditFactor.Cmp(big.NewInt(1_000_000_000_000)))
	require.Equal(t, 18, round.NativeTokenDecimals)
	require.Equal(t, token, round.NativeTokenAddress)
	require.Equal(t, "DAI", round.NativeTokenSymbol)
	require.Equal(t, registryAddr, round.RecipientRegistryAddress)

	_, err = client.RoundInfo(context.Background(), common.HexToAddress("0x01"))
	require.ErrorIs(t, err, service.ErrRoundNotFound)
}
