package workflow

// stepMessages is the static step→message table the UI shows while the
// wizard is in progress.
var stepMessages = map[int]string{
	StepStoryInput: "ストーリーを入力してください",
	StepTitle:      "タイトルとあらすじを確認してください",
	StepCharacters: "登場人物と声を設定してください",
	StepScenes:     "シーン構成を確認してください",
	StepDialogue:   "セリフと画像プロンプトを編集してください",
	StepAudio:      "音声・BGM・字幕を設定してください",
	StepConfirm:    "内容を確認して動画を生成してください",
}

// StepMessage returns the UI message for a workflow step.
func StepMessage(step int) string {
	if msg, ok := stepMessages[step]; ok {
		return msg
	}
	return "処理中です..."
}
