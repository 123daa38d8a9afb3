package preview

var defaultLiteCommand = []string{"qlmanage", "-p"}

var fullSupported = true
