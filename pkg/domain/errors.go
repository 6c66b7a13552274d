package domain

import (
	"errors"
	"fmt"
)

// ユーザーに表示されるメッセージは英語のまま固定しています。
var (
	// ErrNoImage は画像が未アップロードの状態で生成が要求されたことを示します。
	ErrNoImage = &ValidationError{Message: "please upload an image first"}
	// ErrEmptyResponse はサービスが空のテキストを返したことを示します。
	ErrEmptyResponse = errors.New("the service returned an empty response")
	// ErrGenerationInProgress は生成中に再度生成が要求されたことを示します。
	ErrGenerationInProgress = errors.New("a prompt is already being generated")
)

// EncodingError は画像バイト列の読み込みや変換に失敗したことを表します。
type EncodingError struct {
	Err error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("failed to read image file: %v", e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// UserMessage は UI に表示する短いメッセージです。
func (e *EncodingError) UserMessage() string {
	return "failed to read image file"
}

// ValidationError は前提条件を満たさない操作を表します。状態遷移は起きません。
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ServiceError は外部生成サービスの呼び出し失敗を表します。
// 空レスポンスの場合は Err に ErrEmptyResponse が入ります。
type ServiceError struct {
	Err error
}

func (e *ServiceError) Error() string {
	if errors.Is(e.Err, ErrEmptyResponse) {
		return ErrEmptyResponse.Error()
	}
	return fmt.Sprintf("service error: %v", e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// ConfigurationError は起動時に必要な設定が欠けていることを表します。
// 実行時に回復するものではなく、初期化を中断させます。
type ConfigurationError struct {
	Key string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s environment variable not set", e.Key)
}
