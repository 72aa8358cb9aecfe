package model

import "time"

// WeekRange is an inclusive range of day indexes
type WeekRange struct {
	Start uint64 `mapstructure:"start"`
	End   uint64 `mapstructure:"end" validate:"gtefield=Start"`
}

func (week WeekRange) Contains(day uint64) bool {
	return day >= week.Start && day <= week.End
}

// Weights scale the base units of each soft penalty
type Weights struct {
	ExtraTime    int64 `mapstructure:"extra_time" validate:"gte=0"`
	LeaderSpread int64 `mapstructure:"leader_spread" validate:"gte=0"`
	Discouraged  int64 `mapstructure:"discouraged" validate:"gte=0"`
	Congestion   int64 `mapstructure:"congestion" validate:"gte=0"`
	RoomSurplus  int64 `mapstructure:"room_surplus" validate:"gte=0"`
	ComputerRoom int64 `mapstructure:"computer_room" validate:"gte=0"`
}

// Configuration holds the per-run parameters shared by the builder and the checker
type Configuration struct {
	Days        uint64        `mapstructure:"days" validate:"gte=1"`
	Slots       uint64        `mapstructure:"slots" validate:"gte=1"`
	TwoDayLimit uint64        `mapstructure:"two_day_limit" validate:"gte=1"`
	WindowDays  uint64        `mapstructure:"window_days" validate:"gte=1"`
	WindowLimit uint64        `mapstructure:"window_limit" validate:"gte=1"`
	WeekThree   WeekRange     `mapstructure:"week_three"`
	EarlyDays   uint64        `mapstructure:"early_days"`
	TimeBudget  time.Duration `mapstructure:"time_budget" validate:"gt=0"`
	Weights     Weights       `mapstructure:"weights"`
}

func DefaultConfiguration() Configuration {
	return Configuration{
		Days:        21,
		Slots:       2,
		TwoDayLimit: 3,
		WindowDays:  5,
		WindowLimit: 4,
		WeekThree:   WeekRange{Start: 13, End: 20},
		EarlyDays:   15,
		TimeBudget:  120 * time.Second,
		Weights: Weights{
			ExtraTime:    1,
			LeaderSpread: 1,
			Discouraged:  1,
			Congestion:   1,
			RoomSurplus:  1,
			ComputerRoom: 1,
		},
	}
}

func (config Configuration) Validate() error {
	if problems := structProblems(config); len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}
