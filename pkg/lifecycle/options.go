package lifecycle

import "time"

// Option は Lifecycle の挙動を調整します。
type Option func(*Lifecycle)

// WithTimeout は外部呼び出し1回あたりのタイムアウトを設定します。0 以下なら無制限です。
func WithTimeout(d time.Duration) Option {
	return func(l *Lifecycle) {
		l.timeout = d
	}
}
