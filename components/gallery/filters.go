package gallery

import (
	"fmt"
	"path"
	"strings"

	"github.com/goliatone/go-plugkit/pkg/plugin"
)

// AssetFilters resolves gallery asset paths.
var AssetFilters = &plugin.FilterModule{
	Name: "assets",
	Methods: map[string]plugin.FilterFunc{
		"asset_url": assetURL,
		"thumbnail": thumbnail,
	},
}

// assetURL prefixes a relative path with the asset_host register when the
// host provided one.
func assetURL(recv plugin.Receiver, input any) (any, error) {
	if input == nil {
		return "", nil
	}
	p := strings.TrimSpace(fmt.Sprint(input))
	if p == "" || strings.Contains(p, "://") {
		return p, nil
	}
	host, ok := recv.Register(AssetHostRegister)
	if !ok {
		return p, nil
	}
	base := strings.TrimRight(fmt.Sprint(host), "/")
	return base + "/" + strings.TrimLeft(p, "/"), nil
}

func thumbnail(_ plugin.Receiver, input any) (any, error) {
	if input == nil {
		return "", nil
	}
	p := fmt.Sprint(input)
	ext := path.Ext(p)
	return strings.TrimSuffix(p, ext) + "_thumb" + ext, nil
}
