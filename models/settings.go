package models

// Settings is the tenant-wide bot configuration. It is owned by the backend:
// fetched on console load and replaced wholesale on save.
type Settings struct {
	KnowledgeBase  string  `json:"knowledge_base"`
	SystemPrompt   string  `json:"system_prompt"`
	WelcomeMessage string  `json:"welcome_message"`
	ClientAPIKey   string  `json:"client_api_key"`
	BotName        string  `json:"bot_name"`
	ThemeColor     string  `json:"theme_color"`
	UserMsgColor   string  `json:"user_msg_color"`
	BotMsgColor    string  `json:"bot_msg_color"`
	SendBtnColor   string  `json:"send_btn_color"`
	Temperature    float64 `json:"temperature"`
}

// WidgetConfig is the subset of settings a widget needs to render itself.
// The backend returns it scoped by client key.
type WidgetConfig struct {
	BotName        string `json:"bot_name,omitempty"`
	ThemeColor     string `json:"theme_color,omitempty"`
	UserMsgColor   string `json:"user_msg_color,omitempty"`
	BotMsgColor    string `json:"bot_msg_color,omitempty"`
	SendBtnColor   string `json:"send_btn_color,omitempty"`
	WelcomeMessage string `json:"welcome_message,omitempty"`
}

// DefaultWidgetConfig returns the baked-in widget appearance used whenever
// the backend does not say otherwise.
func DefaultWidgetConfig() WidgetConfig {
	return WidgetConfig{
		BotName:        "Lucy AI",
		ThemeColor:     "#4F46E5",
		UserMsgColor:   "#4F46E5",
		BotMsgColor:    "#ffffff",
		SendBtnColor:   "#4F46E5",
		WelcomeMessage: "Hello! How can I help you today?",
	}
}

// Merge overlays server-provided fields onto the receiver. Fields the server
// left empty keep their current value.
func (c WidgetConfig) Merge(server WidgetConfig) WidgetConfig {
	if server.BotName != "" {
		c.BotName = server.BotName
	}
	if server.ThemeColor != "" {
		c.ThemeColor = server.ThemeColor
	}
	if server.UserMsgColor != "" {
		c.UserMsgColor = server.UserMsgColor
	}
	if server.BotMsgColor != "" {
		c.BotMsgColor = server.BotMsgColor
	}
	if server.SendBtnColor != "" {
		c.SendBtnColor = server.SendBtnColor
	}
	if server.WelcomeMessage != "" {
		c.WelcomeMessage = server.WelcomeMessage
	}
	return c
}
