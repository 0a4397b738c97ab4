// internal/matching/service_type.go
package matching

import "strings"

const (
	servicePointsDemand   = 15
	servicePointsSupplier = 10
	serviceLabelBonus     = 30
)

// ServiceCategory is one entry of the fixed AI-service enumeration.
type ServiceCategory struct {
	Label    string
	Triggers []string
}

var serviceCategories = []ServiceCategory{
	{Label: "AI 챗봇/대화형AI", Triggers: []string{"챗봇", "대화형", "상담", "고객응대", "메신저", "chatbot", "conversational"}},
	{Label: "AI 이미지/영상인식", Triggers: []string{"이미지", "영상", "비전", "객체", "cctv", "카메라", "vision"}},
	{Label: "AI 음성인식/합성", Triggers: []string{"음성", "스피치", "콜센터", "받아쓰기", "stt", "tts", "speech"}},
	{Label: "AI 자연어처리", Triggers: []string{"자연어", "텍스트", "문서", "번역", "요약", "nlp", "llm"}},
	{Label: "AI 예측분석", Triggers: []string{"예측", "분석", "수요", "통계", "빅데이터", "시계열", "forecast"}},
	{Label: "AI 추천시스템", Triggers: []string{"추천", "개인화", "맞춤", "큐레이션", "recommendation"}},
	{Label: "AI 로봇/자동화", Triggers: []string{"로봇", "자동화", "공정", "스마트팩토리", "무인", "rpa", "robot"}},
	{Label: "AI 플랫폼/인프라", Triggers: []string{"플랫폼", "클라우드", "인프라", "서버", "gpu", "mlops", "platform"}},
	{Label: "AI 교육/컨설팅", Triggers: []string{"교육", "컨설팅", "강의", "자문", "인재양성", "consulting"}},
	{Label: "기타 AI", Triggers: []string{"인공지능", "머신러닝", "딥러닝", "machine learning", "deep learning"}},
}

var categoryIndex = func() map[string]int {
	idx := make(map[string]int, len(serviceCategories))
	for i, c := range serviceCategories {
		idx[normalizeLabel(c.Label)] = i
	}
	return idx
}()

// ServiceCategories returns a copy of the service-type enumeration.
func ServiceCategories() []ServiceCategory {
	out := make([]ServiceCategory, len(serviceCategories))
	for i, c := range serviceCategories {
		out[i] = ServiceCategory{Label: c.Label, Triggers: append([]string(nil), c.Triggers...)}
	}
	return out
}

// IsKnownServiceType reports whether serviceType is one of the enumerated categories.
func IsKnownServiceType(serviceType string) bool {
	_, ok := categoryIndex[normalizeLabel(serviceType)]
	return ok
}

// ServiceTypeResult is the outcome of the service-type relevance check.
type ServiceTypeResult struct {
	Score               int      `json:"score"`
	MatchedServiceTypes []string `json:"matchedServiceTypes"`
}

// ServiceTypeRelevance measures how strongly a demand's text points at the supplier's
// declared service category. Unrecognized categories score 0.
func ServiceTypeRelevance(demandText, serviceType, demandKeywords, supplierKeywords string) ServiceTypeResult {
	i, ok := categoryIndex[normalizeLabel(serviceType)]
	if !ok {
		return ServiceTypeResult{Score: 0, MatchedServiceTypes: []string{}}
	}
	category := serviceCategories[i]
	label := strings.ToLower(category.Label)

	demandHay := strings.ToLower(demandText + " " + demandKeywords)
	// The label is cut out of the supplier side so its own words cannot confirm themselves.
	supplierHay := strings.ToLower(strings.Replace(strings.ToLower(serviceType), label, " ", 1) + " " + supplierKeywords)

	total := 0
	matched := []string{}
	for _, trigger := range category.Triggers {
		if !strings.Contains(demandHay, trigger) {
			continue
		}
		total += servicePointsDemand
		if strings.Contains(supplierHay, trigger) {
			total += servicePointsSupplier
		}
		matched = appendUnique(matched, trigger)
	}

	if strings.Contains(demandHay, label) {
		total += serviceLabelBonus
	}

	return ServiceTypeResult{Score: clamp(total), MatchedServiceTypes: matched}
}

func normalizeLabel(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
