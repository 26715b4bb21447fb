package config

type defaultSettingKey uint

const (
	BACKEND           defaultSettingKey = 0x0
	SETTLEDELAYMILLIS defaultSettingKey = 0x1
	OUTPUTDIR         defaultSettingKey = 0x2
	OUTPUTFORMAT      defaultSettingKey = 0x3
)

var defaultSettings = map[defaultSettingKey]interface{}{
	BACKEND:           "opencv",
	SETTLEDELAYMILLIS: 300,
	OUTPUTDIR:         ".",
	OUTPUTFORMAT:      "png",
}
