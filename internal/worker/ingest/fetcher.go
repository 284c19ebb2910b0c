package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/scholarfind/internal/model"
	"github.com/hitoshi/scholarfind/internal/repository"
)

// DefaultInterval は正常時のフェッチ間隔。
const DefaultInterval = 6 * time.Hour

// deadlineLayouts はフィードのdeadline要素として受け付ける日付形式。
var deadlineLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	"02 Jan 2006",
}

// ScholarshipUpserter は奨学金のUPSERT処理のインターフェース。
type ScholarshipUpserter interface {
	UpsertByLink(ctx context.Context, s *model.ScholarshipCandidate, sourceID string) error
}

// SSRFValidator はSSRF検証のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// TextSanitizer はフィード本文からタグを除去する。
type TextSanitizer interface {
	Sanitize(input string) string
}

// Recorder はフェッチ結果のメトリクスを記録する。
type Recorder interface {
	RecordIngestSuccess(sourceID string)
	RecordIngestFailure(sourceID string, reason string)
	RecordParseFailure(sourceID string)
	RecordIngestLatency(duration time.Duration)
	RecordScholarshipsUpserted(count int)
}

type nopRecorder struct{}

func (nopRecorder) RecordIngestSuccess(string)         {}
func (nopRecorder) RecordIngestFailure(string, string) {}
func (nopRecorder) RecordParseFailure(string)          {}
func (nopRecorder) RecordIngestLatency(time.Duration)  {}
func (nopRecorder) RecordScholarshipsUpserted(int)     {}

// Fetcher は奨学金配信元1件のフェッチ・パース・保存を行う。
// ETag/Last-Modifiedによる条件付きGET、SSRF検証、HTMLページからのフィード検出、
// gofeedによるパース、リンクをキーにした奨学金のUPSERTを実行する。
type Fetcher struct {
	sources      repository.IngestSourceRepository
	scholarships ScholarshipUpserter
	ssrfGuard    SSRFValidator
	sanitizer    TextSanitizer
	recorder     Recorder
	logger       *slog.Logger
	timeout      time.Duration
	maxBodySize  int64
	interval     time.Duration
}

// NewFetcher はFetcherの新しいインスタンスを生成する。
// recorderがnilの場合はメトリクスを記録しない。intervalが0以下の場合はDefaultIntervalを使う。
func NewFetcher(
	sources repository.IngestSourceRepository,
	scholarships ScholarshipUpserter,
	ssrfGuard SSRFValidator,
	sanitizer TextSanitizer,
	recorder Recorder,
	logger *slog.Logger,
	timeout time.Duration,
	maxBodySize int64,
	interval time.Duration,
) *Fetcher {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Fetcher{
		sources:      sources,
		scholarships: scholarships,
		ssrfGuard:    ssrfGuard,
		sanitizer:    sanitizer,
		recorder:     recorder,
		logger:       logger,
		timeout:      timeout,
		maxBodySize:  maxBodySize,
		interval:     interval,
	}
}

// response はフェッチ結果のうち後続処理に必要な部分。
type response struct {
	status      int
	contentType string
	etag        string
	lastMod     string
	body        []byte
}

// Fetch は配信元をフェッチし、結果に応じて配信元の状態を更新する。
// SourceFetcherインターフェースを実装する。
func (f *Fetcher) Fetch(ctx context.Context, src *model.IngestSource) error {
	start := time.Now()
	defer func() { f.recorder.RecordIngestLatency(time.Since(start)) }()

	if err := f.ssrfGuard.ValidateURL(src.FeedURL); err != nil {
		f.logger.Error("SSRF検証に失敗しました",
			slog.String("source_id", src.ID),
			slog.String("feed_url", src.FeedURL),
			slog.String("error", err.Error()),
		)
		ApplyStop(src, fmt.Sprintf("SSRF検証失敗: %s", err.Error()))
		f.recorder.RecordIngestFailure(src.ID, FetchResultStop.String())
		f.saveState(ctx, src)
		return fmt.Errorf("SSRF検証に失敗: %w", err)
	}

	resp, err := f.get(ctx, src.FeedURL, src.ETag, src.LastModified)
	if err != nil {
		f.logger.Error("HTTPリクエストに失敗しました",
			slog.String("source_id", src.ID),
			slog.String("feed_url", src.FeedURL),
			slog.String("error", err.Error()),
		)
		ApplyBackoff(src, fmt.Sprintf("HTTPリクエスト失敗: %s", err.Error()))
		f.recorder.RecordIngestFailure(src.ID, "network")
		f.saveState(ctx, src)
		return fmt.Errorf("HTTPリクエスト失敗: %w", err)
	}

	if !f.handleStatus(src, resp.status) {
		return f.sources.UpdateFetchState(ctx, src)
	}
	if resp.status == http.StatusNotModified {
		return f.sources.UpdateFetchState(ctx, src)
	}

	// 団体サイトのトップページが登録されている場合は、headのリンクからフィードを探して1回だけ辿る。
	if !IsDirectFeed(resp.contentType, resp.body) && IsHTML(resp.contentType) {
		next, ok := f.followFeedLink(ctx, src, resp.body)
		if !ok {
			return f.sources.UpdateFetchState(ctx, src)
		}
		resp = next
	}

	if resp.etag != "" {
		src.ETag = resp.etag
	}
	if resp.lastMod != "" {
		src.LastModified = resp.lastMod
	}

	parsed, err := gofeed.NewParser().ParseString(string(resp.body))
	if err != nil {
		f.logger.Error("フィードのパースに失敗しました",
			slog.String("source_id", src.ID),
			slog.String("feed_url", src.FeedURL),
			slog.String("error", err.Error()),
		)
		ApplyParseFailure(src, err.Error(), f.interval)
		f.recorder.RecordParseFailure(src.ID)
		f.saveState(ctx, src)
		return nil // パース失敗はフェッチエラーとしない（カウントして継続）
	}

	if parsed.Link != "" && src.SiteURL == "" {
		src.SiteURL = parsed.Link
	}
	organisation := src.Organisation
	if organisation == "" {
		organisation = parsed.Title
	}

	scholarships := f.convertItems(parsed.Items, organisation)
	upserted := 0
	for _, s := range scholarships {
		if err := f.scholarships.UpsertByLink(ctx, s, src.ID); err != nil {
			f.logger.Error("奨学金のUPSERTに失敗しました",
				slog.String("source_id", src.ID),
				slog.String("link", s.Link),
				slog.String("error", err.Error()),
			)
			ApplyParseFailure(src, fmt.Sprintf("奨学金UPSERT失敗: %s", err.Error()), f.interval)
			f.recorder.RecordScholarshipsUpserted(upserted)
			f.saveState(ctx, src)
			return nil
		}
		upserted++
	}
	f.recorder.RecordScholarshipsUpserted(upserted)

	ApplySuccess(src, f.interval)
	if err := f.sources.UpdateFetchState(ctx, src); err != nil {
		f.logger.Error("配信元の状態の更新に失敗しました",
			slog.String("source_id", src.ID),
			slog.String("error", err.Error()),
		)
		return err
	}
	f.recorder.RecordIngestSuccess(src.ID)

	f.logger.Info("配信元のフェッチが完了しました",
		slog.String("source_id", src.ID),
		slog.String("feed_url", src.FeedURL),
		slog.Int("items_total", len(parsed.Items)),
		slog.Int("scholarships_upserted", upserted),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// handleStatus はHTTPステータスに応じて配信元の状態を更新する。
// 本文の処理を続ける場合（200）と304の場合にtrueを返す。
func (f *Fetcher) handleStatus(src *model.IngestSource, status int) bool {
	result := ClassifyHTTPStatus(status)
	switch result {
	case FetchResultOK:
		return true

	case FetchResultNotModified:
		f.logger.Info("配信元は未変更です（304）",
			slog.String("source_id", src.ID),
			slog.String("feed_url", src.FeedURL),
		)
		ApplySuccess(src, f.interval)
		f.recorder.RecordIngestSuccess(src.ID)
		return true

	case FetchResultStop:
		reason := fmt.Sprintf("HTTPステータス %d によりフェッチを停止しました", status)
		f.logger.Warn("配信元のフェッチを停止します",
			slog.String("source_id", src.ID),
			slog.String("feed_url", src.FeedURL),
			slog.Int("http_status", status),
		)
		ApplyStop(src, reason)

	case FetchResultBackoff:
		f.logger.Warn("配信元のフェッチにバックオフを適用します",
			slog.String("source_id", src.ID),
			slog.String("feed_url", src.FeedURL),
			slog.Int("http_status", status),
			slog.Int("consecutive_errors", src.ConsecutiveErrors+1),
		)
		ApplyBackoff(src, fmt.Sprintf("HTTPステータス %d によりバックオフを適用しました", status))

	default:
		f.logger.Warn("予期しないHTTPステータスコード",
			slog.String("source_id", src.ID),
			slog.Int("http_status", status),
		)
		ApplyBackoff(src, fmt.Sprintf("予期しないHTTPステータス: %d", status))
	}
	f.recorder.RecordIngestFailure(src.ID, result.String())
	return false
}

// followFeedLink はHTMLページからフィードURLを検出し、そのフィードを取得する。
// 検出できた場合は配信元のフィードURLを置き換える。
func (f *Fetcher) followFeedLink(ctx context.Context, src *model.IngestSource, page []byte) (*response, bool) {
	best := SelectBestFeed(ParseFeedLinks(page, src.FeedURL), src.FeedURL)
	if best == nil {
		f.logger.Warn("配信元のページにフィードが見つかりません",
			slog.String("source_id", src.ID),
			slog.String("feed_url", src.FeedURL),
		)
		ApplyParseFailure(src, "フィードが見つかりません", f.interval)
		f.recorder.RecordParseFailure(src.ID)
		return nil, false
	}
	if err := f.ssrfGuard.ValidateURL(best.URL); err != nil {
		ApplyStop(src, fmt.Sprintf("SSRF検証失敗: %s", err.Error()))
		f.recorder.RecordIngestFailure(src.ID, FetchResultStop.String())
		return nil, false
	}

	f.logger.Info("配信元のフィードURLを検出しました",
		slog.String("source_id", src.ID),
		slog.String("page_url", src.FeedURL),
		slog.String("feed_url", best.URL),
	)
	if src.SiteURL == "" {
		src.SiteURL = src.FeedURL
	}
	src.FeedURL = best.URL
	src.ETag = ""
	src.LastModified = ""

	resp, err := f.get(ctx, best.URL, "", "")
	if err != nil {
		ApplyBackoff(src, fmt.Sprintf("HTTPリクエスト失敗: %s", err.Error()))
		f.recorder.RecordIngestFailure(src.ID, "network")
		return nil, false
	}
	if ClassifyHTTPStatus(resp.status) != FetchResultOK {
		f.handleStatus(src, resp.status)
		return nil, false
	}
	return resp, true
}

// get は条件付きGETを実行し、最大maxBodySizeバイトの本文を読み込む。
func (f *Fetcher) get(ctx context.Context, rawURL, etag, lastModified string) (*response, error) {
	client := f.ssrfGuard.NewSafeClient(f.timeout, f.maxBodySize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエスト作成に失敗: %w", err)
	}
	req.Header.Set("User-Agent", "Scholarfind/1.0 Scholarship Ingest")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, text/html;q=0.8, */*;q=0.5")
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastModified != "" {
		req.Header.Set("If-Modified-Since", lastModified)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	out := &response{
		status:      resp.StatusCode,
		contentType: resp.Header.Get("Content-Type"),
		etag:        resp.Header.Get("ETag"),
		lastMod:     resp.Header.Get("Last-Modified"),
	}
	if resp.StatusCode != http.StatusOK {
		return out, nil
	}
	out.body, err = io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("レスポンス読み取り失敗: %w", err)
	}
	return out, nil
}

func (f *Fetcher) saveState(ctx context.Context, src *model.IngestSource) {
	if err := f.sources.UpdateFetchState(ctx, src); err != nil {
		f.logger.Error("配信元の状態の更新に失敗しました",
			slog.String("source_id", src.ID),
			slog.String("error", err.Error()),
		)
	}
}

// convertItems はフィードの記事を奨学金レコードに変換する。
// タイトルかリンクのない記事は捨てる。
func (f *Fetcher) convertItems(items []*gofeed.Item, organisation string) []*model.ScholarshipCandidate {
	out := make([]*model.ScholarshipCandidate, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}

		link := item.Link
		// LinkがなくGUIDがURL形式の場合はGUIDをLinkとして使用
		if link == "" && (strings.HasPrefix(item.GUID, "http://") || strings.HasPrefix(item.GUID, "https://")) {
			link = item.GUID
		}
		name := f.sanitizer.Sanitize(item.Title)
		if link == "" || name == "" {
			continue
		}

		body := item.Content
		if body == "" {
			body = item.Description
		}

		s := &model.ScholarshipCandidate{
			Name:         name,
			Organisation: organisation,
			Eligibility:  f.sanitizer.Sanitize(body),
			Link:         link,
		}
		if item.Custom != nil {
			s.Benefit = f.sanitizer.Sanitize(item.Custom["benefit"])
			s.Deadline = parseDeadline(item.Custom["deadline"])
		}
		out = append(out, s)
	}
	return out
}

func parseDeadline(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range deadlineLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
