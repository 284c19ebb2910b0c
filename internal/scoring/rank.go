package scoring

import (
	"sort"
	"strings"

	"github.com/hitoshi/scholarfind/internal/model"
)

const (
	// DefaultListSize は注目候補を除いた推薦件数。
	DefaultListSize = 9
	// DefaultNoiseFloor はこの値を超えるスコアの候補のみを「関連あり」とする。
	DefaultNoiseFloor = 10.0
)

// Match はスコアとTierを付与した候補。永続化されずリクエスト毎に再計算される。
type Match struct {
	Candidate model.Candidate `json:"candidate"`
	Score     float64         `json:"match_score"`
	Tier      Tier            `json:"tier,omitempty"`
	Relevant  bool            `json:"relevant"`
}

// Options は推薦リスト組み立てのパラメータ。ゼロ値の項目は既定値を使う。
type Options struct {
	Size  int
	Floor float64
}

func (o Options) withDefaults() Options {
	if o.Size <= 0 {
		o.Size = DefaultListSize
	}
	if o.Floor <= 0 {
		o.Floor = DefaultNoiseFloor
	}
	return o
}

// Recommend は候補プールから推薦リストを組み立てる。
//
// 名前のない候補を除外して採点し、Floorを超える候補をスコア降順で最大Size件選ぶ。
// 不足分は残りの候補からスコア降順で補充する。
// featuredがnilでなければ先頭に1件だけ置き、プール内の同一IDは取り除く。
// 同点の候補はID昇順で並べる。
func Recommend(p *model.Profile, featured model.Candidate, pool []model.Candidate, opts Options) []Match {
	opts = opts.withDefaults()

	var featuredID int64
	hasFeatured := featured != nil
	if hasFeatured {
		featuredID = featured.CandidateID()
	}

	scored := make([]Match, 0, len(pool))
	for _, c := range pool {
		if c == nil || strings.TrimSpace(c.DisplayName()) == "" {
			continue
		}
		if hasFeatured && c.CandidateID() == featuredID && c.CandidateDomain() == featured.CandidateDomain() {
			continue
		}
		s := Score(p, c)
		scored = append(scored, Match{
			Candidate: c,
			Score:     s,
			Tier:      TierFor(s),
			Relevant:  s > opts.Floor,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Candidate.CandidateID() < scored[j].Candidate.CandidateID()
	})

	result := make([]Match, 0, opts.Size+1)
	if hasFeatured {
		result = append(result, Match{
			Candidate: featured,
			Score:     MaxScore,
			Tier:      TierFor(MaxScore),
			Relevant:  true,
		})
	}

	// スコア降順に並んでいるため、関連ありの候補が常に補充分より先に来る。
	for _, m := range scored {
		if len(result)-boolToInt(hasFeatured) >= opts.Size {
			break
		}
		result = append(result, m)
	}
	return result
}

// FeaturedOnly はプロフィール未入力時などに注目候補のみのリストを返す。
func FeaturedOnly(featured model.Candidate) []Match {
	if featured == nil {
		return []Match{}
	}
	return []Match{{
		Candidate: featured,
		Score:     MaxScore,
		Tier:      TierFor(MaxScore),
		Relevant:  true,
	}}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
