package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, selection, profile, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodePersistence        = "PERSISTENCE_ERROR"
	ErrCodeCapacityExceeded   = "CAPACITY_EXCEEDED"
	ErrCodeParse              = "PARSE_ERROR"
	ErrCodeProfileIncomplete  = "PROFILE_INCOMPLETE"
	ErrCodeMutationInProgress = "MUTATION_IN_PROGRESS"
	ErrCodeCandidateNotFound  = "CANDIDATE_NOT_FOUND"
	ErrCodeMicrositeNotFound  = "MICROSITE_NOT_FOUND"
	ErrCodeInvalidDomain      = "INVALID_DOMAIN"
	ErrCodeInvalidKind        = "INVALID_KIND"
	ErrCodeInvalidTab         = "INVALID_TAB"
	ErrCodeInvalidProfile     = "INVALID_PROFILE"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
)

// NewPersistenceError はリモートストアへの書き込み・削除失敗エラーを生成する。
// 楽観的更新はロールバック済みであることを前提とする。
func NewPersistenceError(op string) *APIError {
	return &APIError{
		Code:     ErrCodePersistence,
		Message:  fmt.Sprintf("保存に失敗しました（%s）。変更は取り消されました。", op),
		Category: "selection",
		Action:   "通信状況を確認して、もう一度お試しください。",
	}
}

// NewCapacityExceededError は比較リストの上限到達エラーを生成する。
func NewCapacityExceededError(limit int) *APIError {
	return &APIError{
		Code:     ErrCodeCapacityExceeded,
		Message:  fmt.Sprintf("比較できるのは最大%d件までです。", limit),
		Category: "selection",
		Action:   "比較リストから1件以上外してから追加してください。",
	}
}

// NewParseError はローカル保存データの破損エラーを生成する。
// 呼び出し元は空集合として扱う。
func NewParseError(key string) *APIError {
	return &APIError{
		Code:     ErrCodeParse,
		Message:  fmt.Sprintf("保存データを読み取れませんでした: %s", key),
		Category: "selection",
		Action:   "リストは空の状態から再作成されます。",
	}
}

// NewProfileIncompleteNotice はプロフィール未入力時の通知を生成する。
// エラーではなく、縮退モードであることを示す。
func NewProfileIncompleteNotice() *APIError {
	return &APIError{
		Code:     ErrCodeProfileIncomplete,
		Message:  "プロフィールが未入力のため、おすすめを表示できません。",
		Category: "profile",
		Action:   "志望学位・分野・地域を入力するとおすすめが表示されます。",
	}
}

// NewMutationInProgressError は同一リストへの更新が処理中の場合のエラーを生成する。
func NewMutationInProgressError() *APIError {
	return &APIError{
		Code:     ErrCodeMutationInProgress,
		Message:  "前の操作を処理中です。",
		Category: "selection",
		Action:   "少し待ってから再度お試しください。",
	}
}

// NewCandidateNotFoundError は候補未検出エラーを生成する。
func NewCandidateNotFoundError(domain Domain, id int64) *APIError {
	return &APIError{
		Code:     ErrCodeCandidateNotFound,
		Message:  fmt.Sprintf("指定された%sが見つかりません: %d", domain, id),
		Category: "validation",
		Action:   "IDを確認してください。",
	}
}

// NewMicrositeNotFoundError はマイクロサイト未検出エラーを生成する。
func NewMicrositeNotFoundError(slug string) *APIError {
	return &APIError{
		Code:     ErrCodeMicrositeNotFound,
		Message:  fmt.Sprintf("指定された大学ページが見つかりません: %s", slug),
		Category: "validation",
		Action:   "URLを確認してください。",
	}
}

// NewInvalidDomainError は無効なドメイン指定エラーを生成する。
func NewInvalidDomainError(domain string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDomain,
		Message:  fmt.Sprintf("無効な種別です: %s", domain),
		Category: "validation",
		Action:   "course、microsite、scholarship のいずれかを指定してください。",
	}
}

// NewInvalidKindError は無効なリスト種別エラーを生成する。
func NewInvalidKindError(kind string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidKind,
		Message:  fmt.Sprintf("無効なリスト種別です: %s", kind),
		Category: "validation",
		Action:   "compare または shortlist を指定してください。",
	}
}

// NewInvalidTabError は無効なタブ指定エラーを生成する。
func NewInvalidTabError(tab string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTab,
		Message:  fmt.Sprintf("無効なタブです: %s", tab),
		Category: "validation",
		Action:   "fees、placement、admission、cutoff、ranking、reviews のいずれかを指定してください。",
	}
}

// NewInvalidProfileError はプロフィールの入力値エラーを生成する。
func NewInvalidProfileError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidProfile,
		Message:  fmt.Sprintf("プロフィールの入力内容が正しくありません: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}
