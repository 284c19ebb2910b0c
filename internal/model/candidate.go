// Package model はドメインモデルを定義する。
package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Domain は候補の種別（名前空間）を表す。
// ドメインが異なるIDは同じ数値でも別物として扱う。
type Domain string

const (
	// DomainCourse はコース（大学×学科）を表す。
	DomainCourse Domain = "course"
	// DomainMicrosite は大学マイクロサイトを表す。
	DomainMicrosite Domain = "microsite"
	// DomainScholarship は奨学金を表す。
	DomainScholarship Domain = "scholarship"
)

// Domains は有効なドメインの一覧。
var Domains = []Domain{DomainCourse, DomainMicrosite, DomainScholarship}

// ParseDomain は文字列をDomainに変換する。複数形（courses等）も受け付ける。
func ParseDomain(s string) (Domain, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.TrimSuffix(v, "s")
	for _, d := range Domains {
		if string(d) == v {
			return d, nil
		}
	}
	return "", NewInvalidDomainError(s)
}

// Candidate はスコアリング・選択の対象となるレコードのタグ付きユニオン。
// 実装はScholarshipCandidate, CourseCandidate, MicrositeCandidateの3つのみ。
type Candidate interface {
	CandidateID() int64
	CandidateDomain() Domain
	DisplayName() string
	IsFeatured() bool
}

// ScholarshipCandidate は奨学金レコード。
type ScholarshipCandidate struct {
	ID           int64      `json:"id"`
	Name         string     `json:"scholarship_name"`
	Organisation string     `json:"organisation"`
	Eligibility  string     `json:"eligibility"`
	Benefit      string     `json:"benefit"`
	Deadline     *time.Time `json:"deadline,omitempty"`
	Link         string     `json:"link"`
	Featured     bool       `json:"featured"`
}

func (c ScholarshipCandidate) CandidateID() int64      { return c.ID }
func (c ScholarshipCandidate) CandidateDomain() Domain { return DomainScholarship }
func (c ScholarshipCandidate) DisplayName() string     { return c.Name }
func (c ScholarshipCandidate) IsFeatured() bool        { return c.Featured }

// CourseCandidate は大学のコースレコード。
// 表示専用の項目はAttributesにそのまま保持し、コアロジックでは解釈しない。
type CourseCandidate struct {
	ID          int64             `json:"id"`
	CollegeName string            `json:"college_name"`
	CourseName  string            `json:"course_name"`
	Degree      string            `json:"degree"`
	City        string            `json:"city"`
	State       string            `json:"state"`
	CourseFees  int64             `json:"course_fees"`
	Featured    bool              `json:"featured"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

func (c CourseCandidate) CandidateID() int64      { return c.ID }
func (c CourseCandidate) CandidateDomain() Domain { return DomainCourse }
func (c CourseCandidate) DisplayName() string     { return c.CollegeName }
func (c CourseCandidate) IsFeatured() bool        { return c.Featured }

// MicrositeCandidate は自動生成される大学マイクロサイトのレコード。
type MicrositeCandidate struct {
	ID          int64    `json:"id"`
	Slug        string   `json:"slug"`
	CollegeName string   `json:"college_name"`
	City        string   `json:"city"`
	State       string   `json:"state"`
	Courses     []string `json:"courses,omitempty"`
	Featured    bool     `json:"featured"`
}

func (c MicrositeCandidate) CandidateID() int64      { return c.ID }
func (c MicrositeCandidate) CandidateDomain() Domain { return DomainMicrosite }
func (c MicrositeCandidate) DisplayName() string     { return c.CollegeName }
func (c MicrositeCandidate) IsFeatured() bool        { return c.Featured }

// MarshalCandidates は候補一覧をJSONにエンコードする。
// 全要素が同一ドメインであることを前提とする。
func MarshalCandidates(candidates []Candidate) ([]byte, error) {
	if candidates == nil {
		candidates = []Candidate{}
	}
	return json.Marshal(candidates)
}

// UnmarshalCandidates はドメインに対応する具象型で候補一覧をデコードする。
func UnmarshalCandidates(domain Domain, data []byte) ([]Candidate, error) {
	switch domain {
	case DomainScholarship:
		var list []ScholarshipCandidate
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, err
		}
		return toCandidates(list), nil
	case DomainCourse:
		var list []CourseCandidate
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, err
		}
		return toCandidates(list), nil
	case DomainMicrosite:
		var list []MicrositeCandidate
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, err
		}
		return toCandidates(list), nil
	default:
		return nil, fmt.Errorf("unknown candidate domain: %q", domain)
	}
}

func toCandidates[T Candidate](list []T) []Candidate {
	out := make([]Candidate, len(list))
	for i, c := range list {
		out[i] = c
	}
	return out
}
