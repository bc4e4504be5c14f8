// Package upload 实现流式 multipart 解析：字段写入内存，文件先落到目标目录内的临时文件，
// 完整接收且未超限后再以清洗后的原始文件名提交。
//
// 目录布局：
//
//	<Upload.Storage>/<name>.<ext>     # 已提交文件，同名时追加 -1、-2 …
//	<Upload.Storage>/.upload-*        # 写入中的临时文件，失败或中断时删除
package upload
