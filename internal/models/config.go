package models

// Config 配置
type Config struct {
	Server   ServerConfig   `yaml:"server" envPrefix:"SERVER_"`
	Database DatabaseConfig `yaml:"database" envPrefix:"DATABASE_"`
	LLM      LLMConfig      `yaml:"llm" envPrefix:"LLM_"`
	Game     GameConfig     `yaml:"game" envPrefix:"GAME_"`
}

type ServerConfig struct {
	Port string `yaml:"port" env:"PORT"`
	Host string `yaml:"host" env:"HOST"`
}

type DatabaseConfig struct {
	Path string `yaml:"path" env:"PATH"`
}

type LLMConfig struct {
	Provider    string  `yaml:"provider" env:"PROVIDER"`
	APIKey      string  `yaml:"api_key" env:"API_KEY"`
	APIBase     string  `yaml:"api_base" env:"API_BASE"`
	Model       string  `yaml:"model" env:"MODEL"`
	Temperature float32 `yaml:"temperature" env:"TEMPERATURE"`
	MaxTokens   int     `yaml:"max_tokens" env:"MAX_TOKENS"`
}

// 卡池为空时的处理方式
const (
	EmptyPoolSkipDay = "skip_day"
	EmptyPoolFiller  = "filler"
)

type GameConfig struct {
	ContentDir             string            `yaml:"content_dir" env:"CONTENT_DIR"`
	RankTable              string            `yaml:"rank_table" env:"RANK_TABLE"`
	StartDate              string            `yaml:"start_date" env:"START_DATE"`
	EndDate                string            `yaml:"end_date" env:"END_DATE"`
	TriggerInterval        int               `yaml:"trigger_interval" env:"TRIGGER_INTERVAL"`
	DefaultTimeConsumption int               `yaml:"default_time_consumption" env:"DEFAULT_TIME_CONSUMPTION"`
	Seed                   int64             `yaml:"seed" env:"SEED"`
	EmptyPoolPolicy        string            `yaml:"empty_pool_policy" env:"EMPTY_POOL_POLICY"`
	Countdowns             []CountdownConfig `yaml:"countdowns"`
	SaveSlots              int               `yaml:"save_slots" env:"SAVE_SLOTS"`
}

// CountdownConfig 开局时添加的倒计时
type CountdownConfig struct {
	Name string `yaml:"name"`
	Date string `yaml:"date"`
}

// ApplyDefaults 填充未配置的默认值
func (c *Config) ApplyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/apocalypse.db"
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = 0.7
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 500
	}
	c.Game.ApplyDefaults()
}

// ApplyDefaults 填充游戏默认值
func (g *GameConfig) ApplyDefaults() {
	if g.ContentDir == "" {
		g.ContentDir = "content"
	}
	if g.StartDate == "" {
		g.StartDate = "2019-08-12"
	}
	if g.EndDate == "" {
		g.EndDate = "2020-07-07"
	}
	if g.TriggerInterval <= 0 {
		g.TriggerInterval = 3
	}
	if g.DefaultTimeConsumption <= 0 {
		g.DefaultTimeConsumption = 3
	}
	if g.EmptyPoolPolicy == "" {
		g.EmptyPoolPolicy = EmptyPoolSkipDay
	}
	if g.Countdowns == nil {
		g.Countdowns = []CountdownConfig{{Name: "高考倒计时", Date: "2020-07-07"}}
	}
	if g.SaveSlots <= 0 {
		g.SaveSlots = 5
	}
}
