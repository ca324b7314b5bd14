package sites

import "time"

const DefaultButton = "trigger"

// Site defaults, matching the shipped scene.
const (
	DefaultCooldown     = 500 * time.Millisecond
	DefaultTiltDegrees  = 45.0
	DefaultReceiverCost = 15.0

	FieldQualityDecrease   = 50.0
	LaundryQualityDecrease = 3.0
	LaundryCleanAmount     = 20.0
	LaundryDirtyAmount     = 10.0

	DisposalQualityDecrease = 10.0
	DisposalStaminaCost     = 2.0

	DrinkStaminaGain = 10.0
	DrinkStaminaLoss = 10.0

	TapWaterQuality = 100.0
	TapStaminaCost  = 10.0
	TapFlowDuration = 2 * time.Second
)
