package enum

// ConfirmationOutcome 表示收藏確認回應的處理結果
type ConfirmationOutcome string

const (
	ConfirmationApplied  ConfirmationOutcome = "applied"  // 回應對應最新一次切換，已套用
	ConfirmationStale    ConfirmationOutcome = "stale"    // 回應已被較新的切換取代，已丟棄
	ConfirmationReverted ConfirmationOutcome = "reverted" // 確認失敗，已還原樂觀更新
)
