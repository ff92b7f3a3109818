package response

type Msg struct {
	Message string `json:"message"`
}

type Err struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func Message(msg string) Msg { return Msg{Message: msg} }

// Error 失败响应（customMsg 为空时使用该分类的默认信息）
func Error(kind, customMsg string) Err {
	msg := customMsg
	if msg == "" {
		msg = defaultMsg[kind]
	}
	return Err{Error: kind, Message: msg}
}
