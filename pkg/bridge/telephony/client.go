package telephony

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/voxbridge/voxbridge/pkg/bridge"
)

// CallControl ends an active call out of band, over the provider's REST API
// rather than the media stream.
type CallControl interface {
	EndCall(ctx context.Context, callSID, callerCountry string) error
}

const defaultTwilioBaseURL = "https://api.twilio.com"

// RestClient speaks the provider's call-update REST API with basic auth.
type RestClient struct {
	accountSID string
	authToken  string
	baseURL    string
	httpClient *http.Client
}

func NewRestClient(accountSID, authToken, baseURL string, httpClient *http.Client) *RestClient {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultTwilioBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &RestClient{
		accountSID: strings.TrimSpace(accountSID),
		authToken:  strings.TrimSpace(authToken),
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

func (c *RestClient) Configured() bool {
	return c != nil && c.accountSID != "" && c.authToken != ""
}

// EndCall updates the live call with TwiML that speaks a localized goodbye
// and hangs up. The goodbye language follows the caller's country.
func (c *RestClient) EndCall(ctx context.Context, callSID, callerCountry string) error {
	if !c.Configured() {
		return bridge.NewConnectionError("call control credentials are not configured")
	}
	if strings.TrimSpace(callSID) == "" {
		return fmt.Errorf("callSID is required")
	}

	lang := LanguageForCountry(callerCountry)
	twiml := fmt.Sprintf(`<Response><Say language=%q>%s</Say><Hangup/></Response>`,
		lang, goodbyeText(lang))

	form := url.Values{}
	form.Set("Twiml", twiml)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Calls/%s.json", c.baseURL, c.accountSID, callSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return bridge.NewConnectionError(fmt.Sprintf("end call request failed: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
		return fmt.Errorf("end call rejected (status %d): %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return nil
}

// LanguageForCountry maps an ISO 3166-1 alpha-2 country code to a BCP 47
// language tag for spoken prompts. Unknown countries fall back to en-US.
func LanguageForCountry(countryCode string) string {
	switch strings.ToUpper(strings.TrimSpace(countryCode)) {
	case "US":
		return "en-US"
	case "CA":
		return "en-CA"
	case "GB":
		return "en-GB"
	case "AU":
		return "en-AU"
	case "IN":
		return "hi-IN"
	case "DE":
		return "de-DE"
	case "FR":
		return "fr-FR"
	case "ES":
		return "es-ES"
	case "IT":
		return "it-IT"
	case "RU":
		return "ru-RU"
	case "CN":
		return "zh-CN"
	case "JP":
		return "ja-JP"
	case "BR":
		return "pt-BR"
	case "MX":
		return "es-MX"
	case "ZA", "NG", "PH", "SG", "NZ", "KE":
		return "en-" + strings.ToUpper(strings.TrimSpace(countryCode))
	case "AR":
		return "es-AR"
	case "CL":
		return "es-CL"
	case "CO":
		return "es-CO"
	case "PE":
		return "es-PE"
	case "KR":
		return "ko-KR"
	case "SE":
		return "sv-SE"
	case "FI":
		return "fi-FI"
	case "NO":
		return "no-NO"
	case "DK":
		return "da-DK"
	case "NL":
		return "nl-NL"
	case "BE":
		return "fr-BE"
	case "CH":
		return "de-CH"
	case "AT":
		return "de-AT"
	case "PL":
		return "pl-PL"
	case "CZ":
		return "cs-CZ"
	case "HU":
		return "hu-HU"
	case "GR":
		return "el-GR"
	case "PT":
		return "pt-PT"
	case "TR":
		return "tr-TR"
	case "EG":
		return "ar-EG"
	case "SA":
		return "ar-SA"
	case "AE":
		return "ar-AE"
	case "TH":
		return "th-TH"
	case "VN":
		return "vi-VN"
	case "ID":
		return "id-ID"
	case "MY":
		return "ms-MY"
	case "TZ":
		return "sw-TZ"
	case "RW":
		return "rw-RW"
	case "ET":
		return "am-ET"
	case "PK":
		return "ur-PK"
	default:
		return "en-US"
	}
}

func goodbyeText(lang string) string {
	switch strings.SplitN(lang, "-", 2)[0] {
	case "de":
		return "Auf Wiederhören."
	case "fr":
		return "Au revoir."
	case "es":
		return "Adiós."
	case "it":
		return "Arrivederci."
	case "pt":
		return "Adeus."
	case "nl":
		return "Tot ziens."
	default:
		return "Goodbye."
	}
}
