package templates

import _ "embed"

var (
	//go:embed resource/watchUsage.txt
	WatchUsage string
	//go:embed resource/unwatchUsage.txt
	UnwatchUsage string
	//go:embed resource/invalidName.txt
	InvalidName string
	//go:embed resource/addSuccess.txt
	AddSuccess string
	//go:embed resource/alreadyWatched.txt
	AlreadyWatched string
	//go:embed resource/limitReached.txt
	LimitReached string
	//go:embed resource/removeSuccess.txt
	RemoveSuccess string
	//go:embed resource/notWatched.txt
	NotWatched string
	//go:embed resource/noChannels.txt
	NoChannels string
	//go:embed resource/channelList.txt
	ChannelList string
	//go:embed resource/channelListItem.txt
	ChannelListItem string
	//go:embed resource/unknownCommand.txt
	UnknownCommand string
	//go:embed resource/unexpectedError.txt
	UnexpectedError string
	//go:embed resource/staleReport.txt
	StaleReport string
	//go:embed resource/staleReportItem.txt
	StaleReportItem string
)
