package services

import (
	"net/url"
	"strings"
)

const (
	CarrierYamato    = "yamato"
	CarrierSagawa    = "sagawa"
	CarrierJapanPost = "japanpost"
)

// NormalizeCarrier returns a canonical key for the carriers the shop ships
// with, or "" for anything else.
func NormalizeCarrier(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.NewReplacer(" ", "", "-", "", "_", "").Replace(normalized)

	switch normalized {
	case "yamato", "yamatotransport", "kuronekoyamato", "kuroneko", "ヤマト運輸":
		return CarrierYamato
	case "sagawa", "sagawaexpress", "佐川急便":
		return CarrierSagawa
	case "japanpost", "jp", "yubin", "yupack", "日本郵便":
		return CarrierJapanPost
	default:
		return ""
	}
}

// CarrierDisplayName keeps custom carriers untouched and names known ones.
func CarrierDisplayName(carrier string) string {
	switch NormalizeCarrier(carrier) {
	case CarrierYamato:
		return "Yamato Transport"
	case CarrierSagawa:
		return "Sagawa Express"
	case CarrierJapanPost:
		return "Japan Post"
	default:
		return strings.TrimSpace(carrier)
	}
}

// BuildTrackingURL returns the carrier's tracking page, or "" for unknown carriers.
func BuildTrackingURL(carrier, trackingNumber string) string {
	number := strings.NewReplacer("-", "", " ", "").Replace(strings.TrimSpace(trackingNumber))
	if number == "" {
		return ""
	}

	escaped := url.QueryEscape(number)
	switch NormalizeCarrier(carrier) {
	case CarrierYamato:
		return "https://toi.kuronekoyamato.co.jp/cgi-bin/tneko?number00=1&number01=" + escaped
	case CarrierSagawa:
		return "https://k2k.sagawa-exp.co.jp/p/web/okurijosearch.do?okurijoNo=" + escaped
	case CarrierJapanPost:
		return "https://trackings.post.japanpost.jp/services/srv/search/direct?reqCodeNo1=" + escaped
	default:
		return ""
	}
}
