package model

import "time"

// StepPoint は1時間バケットあたりの歩数を表す。
// 取得後はイミュータブルで、再取得時はセット全体が置き換わる。
type StepPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Steps     int       `json:"steps"`
}

// HeartRatePoint は1時間バケットあたりの平均心拍数を表す。
type HeartRatePoint struct {
	Timestamp time.Time `json:"timestamp"`
	BPM       float64   `json:"bpm"`
}

// SleepSegment は睡眠セッション1件の開始時刻と継続時間を表す。
type SleepSegment struct {
	Timestamp       time.Time `json:"timestamp"`
	DurationMinutes int       `json:"duration_minutes"`
	Type            string    `json:"type"`
}

// Track はSpotifyのトラック1件を表す。取得のたびに新しく生成される。
// PlayedAtは再生履歴エントリにのみ設定される。
type Track struct {
	Name     string     `json:"name"`
	Artist   string     `json:"artist"`
	Album    string     `json:"album,omitempty"`
	ImageURL string     `json:"image_url,omitempty"`
	PlayedAt *time.Time `json:"played_at,omitempty"`
}

// Snapshot はユーザーごとの最終同期済みダッシュボードデータを表す。
// 同期のたびに全体が置き換わる（差分マージは行わない）。
type Snapshot struct {
	UserID          string
	Steps           []StepPoint
	HeartRate       []HeartRatePoint
	Sleep           []SleepSegment
	CurrentTrack    *Track
	RecentTracks    []Track
	FitnessSyncedAt *time.Time
	MusicSyncedAt   *time.Time
}
