package social

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"storyshelf/internal/domain"

	"github.com/tidwall/gjson"
)

const WeChatAPIURL = "https://api.weixin.qq.com"

// WeChat exchanges an OAuth2 authorization code for the user's openid.
// WeChat shares no email, so accounts get a synthetic <id>@wechat.fake address.
type WeChat struct {
	appID      string
	appSecret  string
	baseURL    string
	httpClient *http.Client
}

func NewWeChat(appID, appSecret string) *WeChat {
	return &WeChat{
		appID:      appID,
		appSecret:  appSecret,
		baseURL:    WeChatAPIURL,
		httpClient: defaultHTTPClient(),
	}
}

func (w *WeChat) WithBaseURL(u string) *WeChat {
	w.baseURL = strings.TrimRight(u, "/")
	return w
}

func (w *WeChat) Provider() domain.Provider { return domain.ProviderWeChat }

func (w *WeChat) Verify(ctx context.Context, code string) (*domain.SocialIdentity, error) {
	if code == "" {
		return nil, rejected("empty code")
	}

	q := url.Values{
		"appid":      {w.appID},
		"secret":     {w.appSecret},
		"code":       {code},
		"grant_type": {"authorization_code"},
	}
	status, body, err := get(ctx, w.httpClient, w.baseURL+"/sns/oauth2/access_token?"+q.Encode())
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, rejected("wechat returned %d", status)
	}

	res := gjson.ParseBytes(body)
	if code := res.Get("errcode").Int(); code != 0 {
		return nil, rejected("wechat errcode %d: %s", code, res.Get("errmsg").String())
	}
	openID := res.Get("openid").String()
	if openID == "" {
		return nil, rejected("missing openid")
	}

	id := res.Get("unionid").String()
	if id == "" {
		id = openID
	}
	return &domain.SocialIdentity{
		Provider:   domain.ProviderWeChat,
		ProviderID: id,
		Email:      id + "@wechat.fake",
	}, nil
}
