// Package engines builds the configured OCR engine.
package engines

import (
	"invoicescan/pkg/config"
	"invoicescan/pkg/ocr"
	"invoicescan/pkg/ocr/azure"
	"invoicescan/pkg/ocr/tesseract"
)

// New validates c and returns the tesseract or azure engine it selects.
func New(c config.OCR) (ocr.Engine, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	switch c.Engine {
	case "azure":
		return azure.New(c.AzureEndpoint, c.AzureKey, AzureLanguage(c.Language), c.MinConfidence), nil
	default:
		return tesseract.New(tesseract.Options{
			Languages:     c.Languages(),
			PageSegMode:   c.PageSegMode,
			MinConfidence: c.MinConfidence,
		}), nil
	}
}

// azureLanguages maps tesseract language codes to azure ones.
var azureLanguages = map[string]string{
	"eng":     "en",
	"deu":     "de",
	"fra":     "fr",
	"spa":     "es",
	"ita":     "it",
	"por":     "pt",
	"nld":     "nl",
	"pol":     "pl",
	"tur":     "tr",
	"chi_sim": "zh-Hans",
	"chi_tra": "zh-Hant",
	"jpn":     "ja",
	"kor":     "ko",
}

// AzureLanguage maps the --lang value to the azure language code. Only the
// first of several "+"-joined tesseract languages is used; unknown codes are
// passed through so "en" or "unk" work as given.
func AzureLanguage(lang string) string {
	first := (config.OCR{Language: lang}).Languages()
	if len(first) == 0 {
		return ""
	}
	if code, ok := azureLanguages[first[0]]; ok {
		return code
	}
	return first[0]
}
