package controller

import (
	"context"
	"io"
	"net/http"

	"go.uber.org/zap"

	"nc-warden.io/warden/internal/pkg/logger"
)

// detectFamily probes which path convention the controller at baseURL
// speaks, without spending credentials:
//
//	GET /api/users/self → 401 on UDM (endpoint exists, auth required),
//	                      404 on legacy (endpoint does not exist).
//	GET /status         → answers 200 only on legacy.
//
// Falls back to UDM when neither probe is conclusive, since that is the
// common family on current hardware.
func detectFamily(ctx context.Context, httpClient *http.Client, baseURL string) Family {
	if status, err := probe(ctx, httpClient, baseURL+"/api/users/self"); err == nil {
		switch status {
		case http.StatusUnauthorized:
			return FamilyUDM
		case http.StatusNotFound:
			return FamilyLegacy
		}
	}

	if status, err := probe(ctx, httpClient, baseURL+"/status"); err == nil && status == http.StatusOK {
		return FamilyLegacy
	}

	logger.Debug("Family probe inconclusive, defaulting to UDM",
		zap.String("controller_url", baseURL),
	)
	return FamilyUDM
}

func probe(ctx context.Context, httpClient *http.Client, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return resp.StatusCode, nil
}
