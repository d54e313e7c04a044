// Package auth は認証局（Credential Authority）サービスの内部実装を提供する。
//
// 保護者アカウントの登録・ログイン、保護者の操作による子どもアカウントの作成、
// 保護者トークンによる委任での子どもログイン、トークンの検証と失効を担当する。
// 子どもアカウントにパスワードは存在せず、有効な保護者トークンが
// 所有する子どもを名指しした場合にのみ子どもトークンが発行される。
package auth
