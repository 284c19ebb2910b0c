package model

import (
	"strings"
	"time"
)

// Profile はマッチングに使うユーザーの学業属性を表す。
// どのフィールドも空でありうる。
type Profile struct {
	UserID     string
	Degree     string
	Program    string
	States     []string
	TestScores map[string]float64
	UpdatedAt  time.Time
}

// HasProgram は志望分野が入力されているかを返す。
func (p *Profile) HasProgram() bool {
	return p != nil && strings.TrimSpace(p.Program) != ""
}

// IsEmpty はスコアリングに使える項目が1つもない場合にtrueを返す。
func (p *Profile) IsEmpty() bool {
	if p == nil {
		return true
	}
	if strings.TrimSpace(p.Degree) != "" || strings.TrimSpace(p.Program) != "" {
		return false
	}
	for _, s := range p.States {
		if strings.TrimSpace(s) != "" {
			return false
		}
	}
	return len(p.TestScores) == 0
}
