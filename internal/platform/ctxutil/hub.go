package ctxutil

import "context"

type hubDataKey struct{}

// HubData identifies the peer hub that authenticated a federation request.
type HubData struct {
	HubID string
	Level string
}

func WithHubData(ctx context.Context, hd *HubData) context.Context {
	return context.WithValue(ctx, hubDataKey{}, hd)
}

func GetHubData(ctx context.Context) *HubData {
	if hd, ok := ctx.Value(hubDataKey{}).(*HubData); ok {
		return hd
	}
	return nil
}
