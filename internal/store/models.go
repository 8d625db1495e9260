package store

import "time"

// Submission is a single player's compiled program, tied to one game type.
type Submission struct {
	ID                 string `gorm:"type:varchar(36);primaryKey" json:"id"`
	OwnerID            string `gorm:"type:varchar(36);not null;index" json:"owner_id"`
	GameType           string `gorm:"type:varchar(100);not null" json:"game_type"`
	Language           string `gorm:"type:varchar(32);not null" json:"language"`
	SourcePath         string `gorm:"type:varchar(512);not null" json:"source_path"`
	CompiledBinaryPath *string `gorm:"type:varchar(512)" json:"compiled_binary_path,omitempty"`
	Status             string `gorm:"type:varchar(32);not null;default:pending;index" json:"status"`
	ErrorMessage       string `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

const (
	SubmissionPending   = "pending"
	SubmissionCompiling = "compiling"
	SubmissionAccepted  = "accepted"
	SubmissionRejected  = "rejected"
)

// Match is one run of a game between the participants listed in
// MatchParticipants. Status transitions form the claim pipeline:
// pending -> queued -> running -> completed|failed.
type Match struct {
	ID            string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	TournamentID  *string   `gorm:"type:varchar(36);index" json:"tournament_id,omitempty"`
	GameType      string    `gorm:"type:varchar(100);not null;index:idx_game_status" json:"game_type"`
	RoundNumber   int       `gorm:"not null;default:1" json:"round_number"`
	Status        string    `gorm:"type:varchar(32);not null;default:pending;index;index:idx_game_status" json:"status"`
	ErrorMessage  string    `gorm:"type:text" json:"error_message,omitempty"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Participants  []MatchParticipant `gorm:"foreignKey:MatchID" json:"participants,omitempty"`
}

const (
	MatchPending   = "pending"
	MatchQueued    = "queued"
	MatchRunning   = "running"
	MatchCompleted = "completed"
	MatchFailed    = "failed"
)

// MatchParticipant ties one submission to one seat of a match along with
// its final score and result classification once the match completes.
type MatchParticipant struct {
	ID           int64   `gorm:"primaryKey;autoIncrement" json:"id"`
	MatchID      string  `gorm:"type:varchar(36);not null;index" json:"match_id"`
	SubmissionID string  `gorm:"type:varchar(36);not null;index" json:"submission_id"`
	Seat         int     `gorm:"not null" json:"seat"`
	Score        float64 `gorm:"not null;default:0" json:"score"`
	Result       string  `gorm:"type:varchar(32);not null;default:pending" json:"result"`
}

const (
	ResultPending             = "pending"
	ResultAccepted            = "accepted"
	ResultWrongAnswer         = "wrong_answer"
	ResultTimeLimitExceeded   = "time_limit_exceeded"
	ResultRuntimeError        = "runtime_error"
	ResultCompilationError    = "compilation_error"
)

// Tournament groups a set of submissions into a bracket for one game type.
type Tournament struct {
	ID              string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name            string    `gorm:"type:varchar(255);not null" json:"name"`
	GameType        string    `gorm:"type:varchar(100);not null" json:"game_type"`
	Format          string    `gorm:"type:varchar(32);not null;default:round_robin" json:"format"`
	Status          string    `gorm:"type:varchar(32);not null;default:registering;index" json:"status"`
	MinParticipants int       `gorm:"not null;default:2" json:"min_participants"`
	MaxParticipants *int      `json:"max_participants,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}

const (
	TournamentRegistering = "registering"
	TournamentGenerating  = "generating"
	TournamentRunning     = "running"
	TournamentCompleted   = "completed"
)

const (
	FormatRoundRobin = "round_robin"
)

// TournamentParticipant is one submission's standing within a tournament.
type TournamentParticipant struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TournamentID string    `gorm:"type:varchar(36);not null;index;uniqueIndex:uq_tournament_submission" json:"tournament_id"`
	SubmissionID string    `gorm:"type:varchar(36);not null;uniqueIndex:uq_tournament_submission" json:"submission_id"`
	Score        float64   `gorm:"not null;default:0" json:"score"`
	Wins         int       `gorm:"not null;default:0" json:"wins"`
	Losses       int       `gorm:"not null;default:0" json:"losses"`
	Draws        int       `gorm:"not null;default:0" json:"draws"`
	Eliminated   bool      `gorm:"not null;default:false" json:"eliminated"`
	JoinedAt     time.Time `json:"joined_at"`
}

// Room is the persisted shadow of an in-memory room.Room (C5). The live
// room keeps no message history in memory; its history is the Event
// rows, and Room/RoomPlayer rows exist so a room can be reconstructed
// after a coordinator restart.
type Room struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	GameType  string    `gorm:"type:varchar(100);not null" json:"game_type"`
	Status    string    `gorm:"type:varchar(32);not null;default:waiting;index" json:"status"`
	HostID    string    `gorm:"type:varchar(36);not null" json:"host_id"`
	Capacity  int       `gorm:"not null;default:2" json:"capacity"`
	MatchID   *string   `gorm:"type:varchar(36)" json:"match_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	RoomWaiting  = "waiting"
	RoomPlaying  = "playing"
	RoomFinished = "finished"
	RoomCrashed  = "crashed"
)

// RoomPlayer is one registered seat in a room. LeftAt is nil while the
// player is still a member (though possibly disconnected); a room only
// forgets a player once they explicitly leave.
type RoomPlayer struct {
	ID       int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	RoomID   string     `gorm:"type:varchar(36);not null;index;uniqueIndex:uq_room_player" json:"room_id"`
	PlayerID string     `gorm:"type:varchar(36);not null;uniqueIndex:uq_room_player" json:"player_id"`
	Seat     int        `gorm:"not null" json:"seat"`
	JoinedAt time.Time  `json:"joined_at"`
	LeftAt   *time.Time `json:"left_at,omitempty"`
}

// Event is one line of a room's append-only history, replayed to a
// reconnecting client in Sequence order.
type Event struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	RoomID    string    `gorm:"type:varchar(36);not null;index;uniqueIndex:uq_event_room_sequence" json:"room_id"`
	Sequence  int       `gorm:"not null;uniqueIndex:uq_event_room_sequence" json:"sequence"`
	Payload   string    `gorm:"type:text;not null" json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}
