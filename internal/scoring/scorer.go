// Package scoring はプロフィールと候補のマッチ度（0〜100）を算出する。
// すべて純粋関数であり、I/Oを行わない。
package scoring

import (
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/scholarfind/internal/model"
)

const (
	// MaxScore はスコアの上限。注目候補は常にこの値になる。
	MaxScore = 100.0

	keywordWeightHigh = 60.0
	keywordWeightMid  = 40.0
	keywordWeightLow  = 20.0

	// eligibilityCap は応募資格テキスト長ボーナスの上限。
	eligibilityCap = 40.0
	// eligibilityDivisor は応募資格テキスト長をボーナスに換算する除数。
	eligibilityDivisor = 10.0

	stateMatchBonus  = 20.0
	degreeMatchBonus = 20.0

	// minTokenLength 以下の長さのトークンは接続語とみなして捨てる。
	minTokenLength = 2
)

// Tokenize は志望分野の文字列を空白・ハイフン・スラッシュ・カンマで分割し、
// 小文字化した上で長さ2以下のトークンを除外する。
func Tokenize(program string) []string {
	fields := strings.FieldsFunc(strings.ToLower(program), func(r rune) bool {
		switch r {
		case '-', '/', ',':
			return true
		}
		return r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) <= minTokenLength {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// keywordRatio はトークンのうちいずれかの対象テキストに部分一致した割合を返す。
// トークンが空の場合は分母を1として扱う。
func keywordRatio(tokens []string, haystacks ...string) float64 {
	lowered := make([]string, len(haystacks))
	for i, h := range haystacks {
		lowered[i] = strings.ToLower(h)
	}

	matched := 0
	for _, tok := range tokens {
		for _, h := range lowered {
			if strings.Contains(h, tok) {
				matched++
				break
			}
		}
	}

	total := len(tokens)
	if total == 0 {
		total = 1
	}
	return float64(matched) / float64(total)
}

// keywordScore は一致率をしきい値帯でスコアに変換する。
func keywordScore(ratio float64) float64 {
	switch {
	case ratio >= 0.5:
		return keywordWeightHigh
	case ratio >= 0.3:
		return keywordWeightMid
	case ratio > 0:
		return keywordWeightLow
	default:
		return 0
	}
}

// eligibilityScore は応募資格テキストの長さ/10を上限40で返す。
// 意味的な一致ではなく、記述の充実度の弱い代理指標。
func eligibilityScore(eligibility string) float64 {
	v := float64(utf8.RuneCountInString(eligibility)) / eligibilityDivisor
	if v > eligibilityCap {
		return eligibilityCap
	}
	return v
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > MaxScore {
		return MaxScore
	}
	return v
}

// ScoreScholarship は奨学金のマッチ度を返す。
//
//  1. 注目候補は100
//  2. 志望分野が未入力なら0
//  3. 分野トークンと奨学金名・応募資格の一致率（最大60）
//  4. 応募資格テキスト長ボーナス（最大40）
func ScoreScholarship(p *model.Profile, c model.ScholarshipCandidate) float64 {
	if c.Featured {
		return MaxScore
	}
	if !p.HasProgram() {
		return 0
	}

	tokens := Tokenize(p.Program)
	score := keywordScore(keywordRatio(tokens, c.Name, c.Eligibility))
	score += eligibilityScore(c.Eligibility)
	return clamp(score)
}

// ScoreCourse はコースのマッチ度を返す。
// 分野一致（最大60）に、志望地域一致と志望学位一致をそれぞれ20加点する。
func ScoreCourse(p *model.Profile, c model.CourseCandidate) float64 {
	if c.Featured {
		return MaxScore
	}
	if !p.HasProgram() {
		return 0
	}

	tokens := Tokenize(p.Program)
	score := keywordScore(keywordRatio(tokens, c.CourseName, c.CollegeName))
	if stateMatches(p.States, c.State) {
		score += stateMatchBonus
	}
	if degreeMatches(p.Degree, c.Degree, c.CourseName) {
		score += degreeMatchBonus
	}
	return clamp(score)
}

// ScoreMicrosite は大学マイクロサイトのマッチ度を返す。
// 開講コース名を結合したものをコース名として扱い、コースと同じ規則で採点する。
func ScoreMicrosite(p *model.Profile, c model.MicrositeCandidate) float64 {
	return ScoreCourse(p, model.CourseCandidate{
		ID:          c.ID,
		CollegeName: c.CollegeName,
		CourseName:  strings.Join(c.Courses, " "),
		State:       c.State,
		Featured:    c.Featured,
	})
}

// Score は候補の種別に応じたスコア関数を呼び分ける。
// 未知の型は0を返す。
func Score(p *model.Profile, c model.Candidate) float64 {
	switch v := c.(type) {
	case model.ScholarshipCandidate:
		return ScoreScholarship(p, v)
	case *model.ScholarshipCandidate:
		return ScoreScholarship(p, *v)
	case model.CourseCandidate:
		return ScoreCourse(p, v)
	case *model.CourseCandidate:
		return ScoreCourse(p, *v)
	case model.MicrositeCandidate:
		return ScoreMicrosite(p, v)
	case *model.MicrositeCandidate:
		return ScoreMicrosite(p, *v)
	default:
		return 0
	}
}

func stateMatches(states []string, state string) bool {
	state = strings.TrimSpace(state)
	if state == "" {
		return false
	}
	for _, s := range states {
		if strings.EqualFold(strings.TrimSpace(s), state) {
			return true
		}
	}
	return false
}

func degreeMatches(degree string, fields ...string) bool {
	deg := strings.ToLower(strings.TrimSpace(degree))
	if deg == "" {
		return false
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), deg) {
			return true
		}
	}
	return false
}
