// Package protocol implements the line-oriented text wire protocol spoken by
// game clients. Encoding is total; decoding returns an error for any payload
// that is malformed for its message type, and callers are expected to log and
// drop such messages rather than fail the connection.
//
// The formats are historical and intentionally inconsistent between message
// types (some comma-delimited, some prefix-concatenated, one mixing five
// delimiters). They are preserved byte for byte for client compatibility and
// contained entirely within this package.
package protocol

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrMalformed is returned when a payload cannot be parsed as its message type.
var ErrMalformed = errors.New("malformed message")

// Inbound message prefixes, matched in dispatch order.
const (
	PrefixLogin           = "Login"
	PrefixRegister        = "Register"
	PrefixHello           = "Hello"
	PrefixUpdate          = "Update"
	PrefixTeleportToMap   = "TeleportToMap"
	PrefixEnterMaze       = "EnterMaze"
	PrefixWinMaze         = "WinMaze"
	PrefixBulletCollision = "BulletCollision"
	PrefixRespawn         = "Respawn"
	PrefixChat            = "Chat"
	PrefixShot            = "Shot"
	PrefixRemove          = "Remove"
	PrefixExitAuth        = "Exit Auth"
	PrefixExit            = "Exit"
	PrefixScoreBattleEnd  = "ScoreBattleEnd"
	PrefixMazeEnd         = "MazeEnd"
	PrefixShop            = "Shop,"
	PrefixSpawnMonster    = "SpawnMonster"
	PrefixMonsterDead     = "MonsterDead"
	PrefixMonsterHit      = "MonsterHit"
	PrefixBulletUpdate    = "BulletUpdate"
	PrefixScoreUpdate     = "ScoreUpdate"
)

// Credentials carries a login request.
type Credentials struct {
	Username string
	Password string
}

// Registration carries an account-creation request.
type Registration struct {
	Username string
	Password string
	Email    string
}

// PositionUpdate carries a player movement report.
type PositionUpdate struct {
	Username  string
	X, Y, Dir int
}

// Teleport carries a map-transfer request.
type Teleport struct {
	Username string
	Map      string
	X, Y     int
}

// MonsterHit carries a damage report against a monster.
type MonsterHit struct {
	MonsterID int
	Damage    int
	Shooter   string
}

// BulletCollision carries a player-versus-player hit report.
type BulletCollision struct {
	Shooter string
	Victim  string
}

// ScoreReport carries an absolute hunt-score assignment.
type ScoreReport struct {
	Username string
	Score    int
}

// BattleResult carries the end-of-match report for the score battle mode.
type BattleResult struct {
	Username string
	Gold     int
	Kills    int
}

// MazeResult carries the end-of-run report for the maze mode.
type MazeResult struct {
	Username       string
	Score          int
	CoinsCollected int
	Won            bool
}

// ShopRequest carries a shop action and its optional argument.
type ShopRequest struct {
	Action string
	Arg    string
}

// SkinItem is one purchasable skin as listed by the shop.
type SkinItem struct {
	ID          int
	Name        string
	Description string
	Price       int
	Folder      string
	Default     bool
}

// PlayerSkin is one skin owned by a player.
type PlayerSkin struct {
	ID          int
	Name        string
	Description string
	Folder      string
	Equipped    bool
}

// ---- Decoding ----

// ParseLogin decodes "Login,<user>,<pass>".
func ParseLogin(msg string) (Credentials, error) {
	parts := strings.Split(msg, ",")
	if len(parts) < 3 || parts[1] == "" {
		return Credentials{}, fmt.Errorf("parsing Login: %w", ErrMalformed)
	}
	return Credentials{Username: parts[1], Password: parts[2]}, nil
}

// ParseRegister decodes "Register,<user>,<pass>,<email>".
func ParseRegister(msg string) (Registration, error) {
	parts := strings.Split(msg, ",")
	if len(parts) < 4 || parts[1] == "" {
		return Registration{}, fmt.Errorf("parsing Register: %w", ErrMalformed)
	}
	return Registration{Username: parts[1], Password: parts[2], Email: parts[3]}, nil
}

// ParseHello decodes "Hello<username>".
func ParseHello(msg string) (string, error) {
	name := strings.TrimPrefix(msg, PrefixHello)
	if name == "" || name == msg {
		return "", fmt.Errorf("parsing Hello: %w", ErrMalformed)
	}
	return name, nil
}

// ParseUpdate decodes "Update,<username>,<x>,<y>,<dir>".
func ParseUpdate(msg string) (PositionUpdate, error) {
	parts := strings.Split(msg, ",")
	if len(parts) < 5 || parts[1] == "" {
		return PositionUpdate{}, fmt.Errorf("parsing Update: %w", ErrMalformed)
	}
	x, err1 := strconv.Atoi(parts[2])
	y, err2 := strconv.Atoi(parts[3])
	dir, err3 := strconv.Atoi(parts[4])
	if err1 != nil || err2 != nil || err3 != nil {
		return PositionUpdate{}, fmt.Errorf("parsing Update coordinates: %w", ErrMalformed)
	}
	return PositionUpdate{Username: parts[1], X: x, Y: y, Dir: dir}, nil
}

// ParseTeleport decodes "TeleportToMap,<username>,<map>,<x>,<y>".
func ParseTeleport(msg string) (Teleport, error) {
	parts := strings.Split(msg, ",")
	if len(parts) < 5 || parts[1] == "" || parts[2] == "" {
		return Teleport{}, fmt.Errorf("parsing TeleportToMap: %w", ErrMalformed)
	}
	x, err1 := strconv.Atoi(parts[3])
	y, err2 := strconv.Atoi(parts[4])
	if err1 != nil || err2 != nil {
		return Teleport{}, fmt.Errorf("parsing TeleportToMap coordinates: %w", ErrMalformed)
	}
	return Teleport{Username: parts[1], Map: parts[2], X: x, Y: y}, nil
}

// ParseEnterMaze decodes "EnterMaze<username>".
func ParseEnterMaze(msg string) (string, error) {
	name := strings.TrimPrefix(msg, PrefixEnterMaze)
	if name == "" || name == msg {
		return "", fmt.Errorf("parsing EnterMaze: %w", ErrMalformed)
	}
	return name, nil
}

// ParseWinMaze decodes "WinMaze<username>".
func ParseWinMaze(msg string) (string, error) {
	name := strings.TrimPrefix(msg, PrefixWinMaze)
	if name == "" || name == msg {
		return "", fmt.Errorf("parsing WinMaze: %w", ErrMalformed)
	}
	return name, nil
}

// ParseRespawn decodes "Respawn<username>".
func ParseRespawn(msg string) (string, error) {
	name := strings.TrimPrefix(msg, PrefixRespawn)
	if name == "" || name == msg {
		return "", fmt.Errorf("parsing Respawn: %w", ErrMalformed)
	}
	return name, nil
}

// ParseBulletCollision decodes "BulletCollision,<shooter>,<victim>".
func ParseBulletCollision(msg string) (BulletCollision, error) {
	parts := strings.Split(msg, ",")
	if len(parts) < 3 || parts[1] == "" || parts[2] == "" {
		return BulletCollision{}, fmt.Errorf("parsing BulletCollision: %w", ErrMalformed)
	}
	return BulletCollision{Shooter: parts[1], Victim: parts[2]}, nil
}

// ParseRemove decodes "Remove<id>".
func ParseRemove(msg string) (int, error) {
	id, err := strconv.Atoi(strings.TrimPrefix(msg, PrefixRemove))
	if err != nil {
		return 0, fmt.Errorf("parsing Remove: %w", ErrMalformed)
	}
	return id, nil
}

// ParseExit decodes "Exit<username>".
func ParseExit(msg string) (string, error) {
	name := strings.TrimPrefix(msg, PrefixExit)
	if name == "" || name == msg {
		return "", fmt.Errorf("parsing Exit: %w", ErrMalformed)
	}
	return name, nil
}

// ParseMonsterHit decodes "MonsterHit,<id>,<damage>,<shooter>".
func ParseMonsterHit(msg string) (MonsterHit, error) {
	parts := strings.Split(msg, ",")
	if len(parts) < 4 || parts[3] == "" {
		return MonsterHit{}, fmt.Errorf("parsing MonsterHit: %w", ErrMalformed)
	}
	id, err1 := strconv.Atoi(parts[1])
	dmg, err2 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil {
		return MonsterHit{}, fmt.Errorf("parsing MonsterHit numbers: %w", ErrMalformed)
	}
	return MonsterHit{MonsterID: id, Damage: dmg, Shooter: parts[3]}, nil
}

// ParseScoreUpdate decodes "ScoreUpdate,<username>,<score>".
func ParseScoreUpdate(msg string) (ScoreReport, error) {
	parts := strings.Split(msg, ",")
	if len(parts) < 3 || parts[1] == "" {
		return ScoreReport{}, fmt.Errorf("parsing ScoreUpdate: %w", ErrMalformed)
	}
	score, err := strconv.Atoi(parts[2])
	if err != nil {
		return ScoreReport{}, fmt.Errorf("parsing ScoreUpdate score: %w", ErrMalformed)
	}
	return ScoreReport{Username: parts[1], Score: score}, nil
}

// ParseScoreBattleEnd decodes "ScoreBattleEnd,<username>,<gold>[,<kills>]".
// The kills field is optional and defaults to 0 for older clients.
func ParseScoreBattleEnd(msg string) (BattleResult, error) {
	parts := strings.Split(msg, ",")
	if len(parts) < 3 || parts[1] == "" {
		return BattleResult{}, fmt.Errorf("parsing ScoreBattleEnd: %w", ErrMalformed)
	}
	gold, err := strconv.Atoi(parts[2])
	if err != nil {
		return BattleResult{}, fmt.Errorf("parsing ScoreBattleEnd gold: %w", ErrMalformed)
	}
	kills := 0
	if len(parts) > 3 {
		if kills, err = strconv.Atoi(parts[3]); err != nil {
			return BattleResult{}, fmt.Errorf("parsing ScoreBattleEnd kills: %w", ErrMalformed)
		}
	}
	return BattleResult{Username: parts[1], Gold: gold, Kills: kills}, nil
}

// ParseMazeEnd decodes "MazeEnd,<username>,<score>,<coins>,<won>".
func ParseMazeEnd(msg string) (MazeResult, error) {
	parts := strings.Split(msg, ",")
	if len(parts) < 5 || parts[1] == "" {
		return MazeResult{}, fmt.Errorf("parsing MazeEnd: %w", ErrMalformed)
	}
	score, err1 := strconv.Atoi(parts[2])
	coins, err2 := strconv.Atoi(parts[3])
	if err1 != nil || err2 != nil {
		return MazeResult{}, fmt.Errorf("parsing MazeEnd numbers: %w", ErrMalformed)
	}
	return MazeResult{
		Username:       parts[1],
		Score:          score,
		CoinsCollected: coins,
		Won:            parts[4] == "1",
	}, nil
}

// ParseShop decodes "Shop,<action>[,<arg>]".
func ParseShop(msg string) (ShopRequest, error) {
	parts := strings.Split(msg, ",")
	if len(parts) < 2 || parts[1] == "" {
		return ShopRequest{}, fmt.Errorf("parsing Shop: %w", ErrMalformed)
	}
	req := ShopRequest{Action: parts[1]}
	if len(parts) > 2 {
		req.Arg = parts[2]
	}
	return req, nil
}

// ---- Encoding ----

// LoginResult encodes "Login,<status>,<msg>".
func LoginResult(success bool, msg string) string {
	return PrefixLogin + "," + statusWord(success) + "," + msg
}

// RegisterResult encodes "Register,<status>,<msg>".
func RegisterResult(success bool, msg string) string {
	return PrefixRegister + "," + statusWord(success) + "," + msg
}

func statusWord(success bool) string {
	if success {
		return "Success"
	}
	return "Failed"
}

// AssignedID encodes "ID<id>,<username>".
func AssignedID(id int, username string) string {
	return "ID" + strconv.Itoa(id) + "," + username
}

// NewClient encodes "NewClient<username>,<x>-<y>|<dir>!<id>#<map>".
func NewClient(username string, x, y, dir, id int, mapName string) string {
	return "NewClient" + username + "," +
		strconv.Itoa(x) + "-" + strconv.Itoa(y) + "|" +
		strconv.Itoa(dir) + "!" + strconv.Itoa(id) + "#" + mapName
}

// Update encodes "Update,<username>,<x>,<y>,<dir>".
func Update(username string, x, y, dir int) string {
	return fmt.Sprintf("Update,%s,%d,%d,%d", username, x, y, dir)
}

// TeleportMap encodes "TeleportMap,<username>,<map>,<x>,<y>".
func TeleportMap(username, mapName string, x, y int) string {
	return fmt.Sprintf("TeleportMap,%s,%s,%d,%d", username, mapName, x, y)
}

// Exit encodes "Exit<username>".
func Exit(username string) string {
	return PrefixExit + username
}

// Leaderboard encodes "Leaderboard<payload>".
func Leaderboard(payload string) string {
	return "Leaderboard" + payload
}

// Maze encodes "Maze<payload>".
func Maze(payload string) string {
	return "Maze" + payload
}

// ChangeSkin encodes "ChangeSkin,<username>,<folder>".
func ChangeSkin(username, folder string) string {
	return "ChangeSkin," + username + "," + folder
}

// HuntTime encodes "HuntTime,<seconds>".
func HuntTime(seconds int) string {
	return "HuntTime," + strconv.Itoa(seconds)
}

// HuntWave encodes "HuntWave,<n>".
func HuntWave(wave int) string {
	return "HuntWave," + strconv.Itoa(wave)
}

// HuntEnd encodes the end-of-match signal.
func HuntEnd() string {
	return "HuntEnd"
}

// SpawnMonster encodes "SpawnMonster,<id>,<type>,<x>,<y>".
func SpawnMonster(id, monsterType, x, y int) string {
	return fmt.Sprintf("SpawnMonster,%d,%d,%d,%d", id, monsterType, x, y)
}

// MonsterUpdate encodes "MonsterUpdate,<id>,<x>,<y>,<health>".
func MonsterUpdate(id, x, y, health int) string {
	return fmt.Sprintf("MonsterUpdate,%d,%d,%d,%d", id, x, y, health)
}

// MonsterDead encodes "MonsterDead,<id>,<killer>,<gold>".
func MonsterDead(id int, killer string, gold int) string {
	return fmt.Sprintf("MonsterDead,%d,%s,%d", id, killer, gold)
}

// HuntLeaderboard encodes "HuntLeaderboard,<user>:<score>,..." with entries
// ordered by descending score. Users with equal scores are ordered by name so
// that encoding a fixed score map is deterministic.
func HuntLeaderboard(scores map[string]int) string {
	type entry struct {
		user  string
		score int
	}
	entries := make([]entry, 0, len(scores))
	for u, s := range scores {
		entries = append(entries, entry{user: u, score: s})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].score != entries[j].score {
			return entries[i].score > entries[j].score
		}
		return entries[i].user < entries[j].user
	})

	var sb strings.Builder
	sb.WriteString("HuntLeaderboard")
	for _, e := range entries {
		sb.WriteString(",")
		sb.WriteString(e.user)
		sb.WriteString(":")
		sb.WriteString(strconv.Itoa(e.score))
	}
	return sb.String()
}

// PlayerCoins encodes "PlayerCoins,<coins>".
func PlayerCoins(coins int) string {
	return "PlayerCoins," + strconv.Itoa(coins)
}

// BuyResult encodes "BuyResult,<success|failed>,<msg>,<balance>".
func BuyResult(success bool, msg string, balance int) string {
	word := "failed"
	if success {
		word = "success"
	}
	return fmt.Sprintf("BuyResult,%s,%s,%d", word, msg, balance)
}

// SkinsList encodes "SkinsList,<id>|<name>|<desc>|<price>|<folder>|<default>,...".
func SkinsList(skins []SkinItem) string {
	var sb strings.Builder
	sb.WriteString("SkinsList")
	for _, s := range skins {
		sb.WriteString(",")
		sb.WriteString(fmt.Sprintf("%d|%s|%s|%d|%s|%s",
			s.ID, s.Name, s.Description, s.Price, s.Folder, boolFlag(s.Default)))
	}
	return sb.String()
}

// PlayerSkins encodes "PlayerSkins,<id>|<name>|<desc>|<folder>|<equipped>,...".
func PlayerSkins(skins []PlayerSkin) string {
	var sb strings.Builder
	sb.WriteString("PlayerSkins")
	for _, s := range skins {
		sb.WriteString(",")
		sb.WriteString(fmt.Sprintf("%d|%s|%s|%s|%s",
			s.ID, s.Name, s.Description, s.Folder, boolFlag(s.Equipped)))
	}
	return sb.String()
}

// EquippedSkin encodes "EquippedSkin,<folder>".
func EquippedSkin(folder string) string {
	return "EquippedSkin," + folder
}

// ShopError encodes "Shop,Error,<msg>".
func ShopError(msg string) string {
	return "Shop,Error," + msg
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
