package classifier

// Keywords groups the four keyword lists used by a Classifier.
type Keywords struct {
	Major   []string `yaml:"major"`
	Medium  []string `yaml:"medium"`
	Bullish []string `yaml:"bullish"`
	Bearish []string `yaml:"bearish"`
}

// DefaultKeywords covers Traditional Chinese and English market headlines.
func DefaultKeywords() Keywords {
	return Keywords{
		Major: []string{
			// zh-Hant
			"暴跌", "崩盤", "熔斷", "緊急", "違約", "破產", "下調評級", "裁員", "制裁",
			"升息", "降息", "利率決議", "非農", "地緣", "戰爭", "衝突", "停火", "封鎖",
			"訴訟", "判決", "調查", "ETF核准", "ETF獲批", "駭客", "被盜", "黑客",
			// en
			"FOMC", "CPI", "PCE", "NFP", "nonfarm payrolls", "SEC",
			"rate decision", "rate cut", "rate cuts", "cuts rates", "cut rates",
			"rate hike", "rate hikes", "hikes rates", "raises rates",
			"default", "defaults", "bankruptcy", "bankrupt", "downgrade", "downgrades",
			"layoffs", "sanction", "sanctions", "war", "ceasefire", "blockade",
			"lawsuit", "sues", "ruling", "probe", "investigation",
			"crash", "circuit breaker", "emergency",
			"ETF approval", "approves ETF", "hack", "hacked", "exploit", "stolen",
		},
		Medium: []string{
			// zh-Hant
			"財報", "展望", "指引", "營收", "毛利", "EPS", "獲利", "下修", "上修",
			"併購", "收購", "合作", "投資", "發表", "推出",
			"美元", "美債", "殖利率", "通膨", "油價", "金價",
			"比特幣", "以太坊", "BTC", "ETH", "加密", "幣圈",
			// en
			"earnings", "guidance", "outlook", "revenue", "profit", "margin",
			"merger", "acquisition", "acquire", "acquires", "buyout", "partnership",
			"investment", "launch", "launches", "unveils",
			"dollar", "treasury", "treasuries", "yield", "yields", "inflation",
			"oil", "gold", "bitcoin", "ethereum", "crypto",
		},
		Bullish: []string{
			"大漲", "上漲", "飆升", "飆漲", "創新高", "利多", "反彈", "突破", "走高", "調升",
			"surge", "surges", "soar", "soars", "rally", "rallies", "jump", "jumps",
			"gain", "gains", "record high", "beats", "upgrade", "upgrades",
			"raises guidance", "rebound", "rebounds", "bullish",
		},
		Bearish: []string{
			"暴跌", "下跌", "重挫", "崩盤", "利空", "走低", "違約", "破產", "賣壓",
			"plunge", "plunges", "slump", "slumps", "fall", "falls", "drop", "drops",
			"tumble", "tumbles", "crash", "misses", "cuts guidance", "selloff", "sell-off",
			"shock", "bearish", "fears",
		},
	}
}
