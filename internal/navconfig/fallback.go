package navconfig

import "github.com/kodiq-ai/academy-shell/internal/models"

// FallbackConfig returns the compiled-in navigation layout used when the
// endpoint is unreachable and no cached config exists. Mirrors the six web
// tabs.
func FallbackConfig() models.NavConfig {
	return models.NavConfig{
		Version: 1,
		Tabs: []models.TabItem{
			{ID: "courses", Icon: "BookOpen", LabelKey: "nav.courses", LabelFallback: "Курсы", Path: "/"},
			{ID: "progress", Icon: "BarChart", LabelKey: "nav.progress", LabelFallback: "Прогресс", Path: "/dashboard"},
			{ID: "skill-map", Icon: "Map", LabelKey: "nav.skillMap", LabelFallback: "Карта", Path: "/skill-map"},
			{ID: "review", Icon: "RefreshCw", LabelKey: "nav.review", LabelFallback: "Повторение", Path: "/review"},
			{ID: "feed", Icon: "Users", LabelKey: "nav.feed", LabelFallback: "Лента", Path: "/feed"},
			{ID: "leaderboard", Icon: "Trophy", LabelKey: "nav.leaderboard", LabelFallback: "Лидеры", Path: "/leaderboard"},
		},
		Drawer: []models.DrawerSection{
			{
				Title: "Навигация",
				Items: []models.DrawerItem{
					{ID: "search", Icon: "Search", LabelKey: "nav.search", LabelFallback: "Поиск", Path: "/search"},
					{ID: "settings", Icon: "Settings", LabelKey: "nav.settings", LabelFallback: "Настройки", Path: "/settings"},
				},
			},
			{
				Title: "Ссылки",
				Items: []models.DrawerItem{
					{ID: "website", Icon: "Globe", LabelKey: "nav.website", LabelFallback: "kodiq.ai", Path: "https://kodiq.ai", External: true},
				},
			},
		},
		Header: models.HeaderConfig{ShowLogo: true, ShowNotifications: true, ShowSearch: true},
	}
}
