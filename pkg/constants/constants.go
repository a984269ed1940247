package constants

const (
	CHANNEL_SIZE       = 100  // 通道大小
	MESSAGE_MAX_LENGTH = 1000 // 消息最大长度（字符数）
	HISTORY_LIMIT      = 50   // 加入房间时回放的历史消息条数
	JOIN_CODE_LENGTH   = 32   // 加入码规范长度（小写十六进制，无分隔符）

	// GLOBAL_ROOM_ID 保留的全局房间 id，启动时种子化，永不删除
	GLOBAL_ROOM_ID = "global"
)
